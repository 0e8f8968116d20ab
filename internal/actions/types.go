package actions

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Amount is a decimal quantity that also accepts bare JSON numbers, since
// extracted parameters are not always quoted.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// Count is a small non-negative integer that also accepts quoted numbers.
type Count int

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	if strings.TrimSpace(raw) == "" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*c = Count(n)
	return nil
}

// GetBalanceParams are the inputs of the balance action.
type GetBalanceParams struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Token   string `json:"token"`
}

// Balance is one token amount.
type Balance struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// GetBalanceResponse is the result of the balance action.
type GetBalanceResponse struct {
	Chain   string   `json:"chain"`
	Address string   `json:"address"`
	Balance *Balance `json:"balance,omitempty"`
}

// TransferParams are the inputs of the transfer action.
type TransferParams struct {
	Chain     string `json:"chain"`
	Token     string `json:"token"`
	Amount    Amount `json:"amount"`
	ToAddress string `json:"toAddress"`
	Data      string `json:"data"`
}

// TransferResponse is the result of the transfer action.
type TransferResponse struct {
	Chain     string `json:"chain"`
	TxHash    string `json:"txHash"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
}

// SwapParams are the inputs of the swap action.
type SwapParams struct {
	Chain     string   `json:"chain"`
	FromToken string   `json:"inputToken"`
	ToToken   string   `json:"outputToken"`
	Amount    Amount   `json:"amount"`
	Slippage  *float64 `json:"slippage"`
}

// SwapResponse is the result of the swap action.
type SwapResponse struct {
	Chain     string `json:"chain"`
	TxHash    string `json:"txHash"`
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
}

// DeployParams is the union of the per kind deploy inputs as extracted.
type DeployParams struct {
	Chain        string `json:"chain"`
	ContractType string `json:"contractType"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Decimals     Count  `json:"decimals"`
	TotalSupply  Amount `json:"totalSupply"`
	BaseURI      string `json:"baseURI"`
}

// DeployERC20Params are the inputs of a fungible token deployment.
type DeployERC20Params struct {
	Chain       string
	Name        string
	Symbol      string
	Decimals    int
	TotalSupply string
}

// DeployERC721Params are the inputs of a single item NFT deployment.
type DeployERC721Params struct {
	Chain   string
	Name    string
	Symbol  string
	BaseURI string
}

// DeployERC1155Params are the inputs of a multi token deployment.
type DeployERC1155Params struct {
	Chain   string
	Name    string
	BaseURI string
}

// DeployResponse carries the created contract address.
type DeployResponse struct {
	Chain   string `json:"chain"`
	Kind    string `json:"contractType"`
	TxHash  string `json:"txHash"`
	Address string `json:"address"`
}
