package lifi

// Token is LI.FI token metadata.
type Token struct {
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name"`
	PriceUSD string `json:"priceUSD,omitempty"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// RoutesRequest is the body of POST /advanced/routes.
type RoutesRequest struct {
	FromChainID      int64         `json:"fromChainId"`
	FromAmount       string        `json:"fromAmount"`
	FromTokenAddress string        `json:"fromTokenAddress"`
	FromAddress      string        `json:"fromAddress,omitempty"`
	ToChainID        int64         `json:"toChainId"`
	ToTokenAddress   string        `json:"toTokenAddress"`
	ToAddress        string        `json:"toAddress,omitempty"`
	Options          RoutesOptions `json:"options"`
}

// RoutesOptions tunes route discovery.
type RoutesOptions struct {
	Order      string   `json:"order,omitempty"`
	Slippage   *float64 `json:"slippage,omitempty"`
	Integrator string   `json:"integrator,omitempty"`
}

// Route is one candidate path from the input to the output token.
type Route struct {
	ID          string `json:"id"`
	FromChainID int64  `json:"fromChainId"`
	FromAmount  string `json:"fromAmount"`
	FromToken   Token  `json:"fromToken"`
	ToChainID   int64  `json:"toChainId"`
	ToAmount    string `json:"toAmount"`
	ToAmountMin string `json:"toAmountMin"`
	ToToken     Token  `json:"toToken"`
	Steps       []Step `json:"steps"`
}

// Step is one opaque leg of a route.
type Step struct {
	ID                 string              `json:"id"`
	Type               string              `json:"type"`
	Tool               string              `json:"tool"`
	Action             StepAction          `json:"action"`
	Estimate           StepEstimate        `json:"estimate"`
	IncludedSteps      []Step              `json:"includedSteps,omitempty"`
	TransactionRequest *TransactionRequest `json:"transactionRequest,omitempty"`
}

// StepAction describes what a step moves.
type StepAction struct {
	FromChainID int64    `json:"fromChainId"`
	FromAmount  string   `json:"fromAmount"`
	FromToken   Token    `json:"fromToken"`
	FromAddress string   `json:"fromAddress,omitempty"`
	ToChainID   int64    `json:"toChainId"`
	ToToken     Token    `json:"toToken"`
	ToAddress   string   `json:"toAddress,omitempty"`
	Slippage    *float64 `json:"slippage,omitempty"`
}

// StepEstimate carries the expected outcome and the spender to approve.
type StepEstimate struct {
	Tool            string `json:"tool,omitempty"`
	ApprovalAddress string `json:"approvalAddress,omitempty"`
	FromAmount      string `json:"fromAmount"`
	ToAmount        string `json:"toAmount"`
	ToAmountMin     string `json:"toAmountMin"`
}

// TransactionRequest is the ready-to-sign payload for a step. Numeric fields
// are hex quantities.
type TransactionRequest struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	ChainID  int64  `json:"chainId,omitempty"`
	Data     string `json:"data"`
	Value    string `json:"value,omitempty"`
	GasLimit string `json:"gasLimit,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}
