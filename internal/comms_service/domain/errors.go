package domain

import "errors"

var (
	ErrCommunicationNotFound = errors.New("communication not found")
	ErrProfileNotFound       = errors.New("profile not found")
	ErrDeliveryNotFound      = errors.New("delivery not found")
)
