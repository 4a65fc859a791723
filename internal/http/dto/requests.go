package dto

import "time"

type ProofDomainRequest struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

type ProofRequest struct {
	Timestamp int64              `json:"timestamp"`
	Domain    ProofDomainRequest `json:"domain"`
	Payload   string             `json:"payload"`
	Signature string             `json:"signature"`
}

type ConnectWalletRequest struct {
	Address   string       `json:"address"` // raw form: 0:<hex>
	Network   string       `json:"network"`
	PublicKey string       `json:"public_key"`
	Proof     ProofRequest `json:"proof"`
}

type CreateContractRequest struct {
	Seller           string    `json:"seller"`
	AmountNano       int64     `json:"amount_nano"`
	ExpiresAt        time.Time `json:"expires_at"`
	DevFeePercent    int64     `json:"dev_fee_percent"`
	EscrowFeePercent int64     `json:"escrow_fee_percent"`
}

type AgreeEscrowRequest struct {
	EscrowAddress string `json:"escrow_address"`
}

type SendFundsRequest struct {
	AmountNano int64 `json:"amount_nano"`
}

type AddFundsRequest struct {
	AmountNano int64 `json:"amount_nano"`
}

type RefundRequest struct {
	AmountNano int64 `json:"amount_nano"`
}

type PayRequest struct {
	AmountNano int64  `json:"amount_nano"`
	Payee      string `json:"payee"`
}

type ReviewRequest struct {
	Text          string `json:"text"`
	IsBuyerReview bool   `json:"is_buyer_review"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
}
