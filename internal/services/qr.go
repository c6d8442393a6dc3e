package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRService provides QR code generation functionality
type QRService struct {
	logger *logrus.Logger
}

// NewQRService creates a new QR code service
func NewQRService(logger *logrus.Logger) *QRService {
	return &QRService{
		logger: logger,
	}
}

// GenerateQR renders text as a PNG QR code
func (s *QRService) GenerateQR(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot encode empty text")
	}

	s.logger.Debugf("Generating QR code for %d bytes of text", len(text))

	// Generate QR code with medium recovery level
	png, err := qrcode.Encode(text, qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Errorf("Failed to generate QR code: %v", err)
		return nil, err
	}

	return png, nil
}
