package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ProofPayloadResponse struct {
	Payload string `json:"payload"`
}

// DepositInfoResponse tells the buyer's wallet where and how to pay so the
// deposit indexer can attribute the transfer.
type DepositInfoResponse struct {
	ContractID    string `json:"contract_id"`
	WalletAddress string `json:"wallet_address"`
	Memo          string `json:"memo"`
	AmountNano    int64  `json:"amount_nano"`
	Status        string `json:"status"`
}

type ReviewsResponse struct {
	BuyerReview  string `json:"buyer_review,omitempty"`
	SellerReview string `json:"seller_review,omitempty"`
}
