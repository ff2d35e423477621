package dto

import "time"

type ReceiptTypeQueryRequest struct {
	ReceiptData string `json:"receipt_data"`
}

type ReceiptTypeQueryResponse struct {
	Environment string `json:"environment"`
}

type SubscriptionTransferRequest struct {
	ReceiptData string `json:"receipt_data"`
}

type AppleReceipt struct {
	ReceiptDataHash string    `json:"receipt_data_hash"`
	ExpirationTime  time.Time `json:"expiration_time"`
	Environment     string    `json:"environment"`
}

type SubscriptionTransferResponse struct {
	IsActive     bool         `json:"is_active"`
	AppleReceipt AppleReceipt `json:"apple_receipt"`
}
