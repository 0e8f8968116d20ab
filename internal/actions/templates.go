package actions

import "strings"

const fence = "```"

var supportedChains = `"arbitrum" | "arbitrumSepolia"`

func jsonBlock(body string) string {
	return "Respond with a JSON markdown block containing only the extracted values. Use null for any values that cannot be determined:\n\n" +
		fence + "json\n" + strings.ReplaceAll(body, "SUPPORTED_CHAINS", supportedChains) + fence + "\n"
}

const preamble = `Given the recent messages and wallet information below:

{{recentMessages}}

{{walletInfo}}

`

// Extraction prompts. The host substitutes {{recentMessages}} and
// {{walletInfo}} before sending them to the model.
var (
	GetBalanceTemplate = preamble + `Extract the following information about the requested check balance:
- Chain to execute on. Must be one of ["arbitrum", "arbitrumSepolia"]. Default is "arbitrum".
- Address to check balance for. Optional, must be a valid Ethereum address starting with "0x" or a web3 domain name. If not provided, use the Arbitrum chain Wallet Address.
- Token symbol or address. Could be a token symbol or address. If the address is provided, it must be a valid Ethereum address starting with "0x". Default is "Arbitrum".
If any field is not provided, use the default value. If no default value is specified, use null.

` + jsonBlock(`{
    "chain": SUPPORTED_CHAINS,
    "address": string | null,
    "token": string
}
`)

	TransferTemplate = preamble + `Extract the following information about the requested transfer:
- Chain to execute on. Must be one of ["arbitrum", "arbitrumSepolia"]. Default is "arbitrum".
- Token symbol or address(string starting with "0x"). Optional.
- Amount to transfer. Optional. Must be a string representing the amount in ether (only number without coin symbol, e.g., "0.1").
- Recipient address. Must be a valid Ethereum address starting with "0x" or a web3 domain name.
- Data. Optional, data to be included in the transaction.
If any field is not provided, use the default value. If no default value is specified, use null.

` + jsonBlock(`{
    "chain": SUPPORTED_CHAINS,
    "token": string | null,
    "amount": string | null,
    "toAddress": string,
    "data": string | null
}
`)

	SwapTemplate = preamble + `Extract the following information about the requested token swap:
- Chain to execute on. Must be one of ["arbitrum", "arbitrumSepolia"]. Default is "arbitrum".
- Input token symbol or address(string starting with "0x").
- Output token symbol or address(string starting with "0x").
- Amount to swap. Must be a string representing the amount in ether (only number without coin symbol, e.g., "0.1").
- Slippage. Optional, expressed as decimal proportion, 0.03 represents 3%.
If any field is not provided, use the default value. If no default value is specified, use null.

` + jsonBlock(`{
    "chain": SUPPORTED_CHAINS,
    "inputToken": string | null,
    "outputToken": string | null,
    "amount": string | null,
    "slippage": number | null
}
`)

	DeployTemplate = preamble + `When user wants to deploy any type of token contract (ERC20/721/1155), this will trigger the DEPLOY_TOKEN action.

Extract the following details for deploying a token contract:
- Chain to execute on. Must be one of ["arbitrum", "arbitrumSepolia"]. Default is "arbitrum".
- contractType: The type of token contract to deploy
  - For ERC20: Extract name, symbol, decimals, totalSupply
  - For ERC721: Extract name, symbol, baseURI
  - For ERC1155: Extract name, baseURI
- name: The name of the token.
- symbol: The token symbol (only for ERC20/721).
- decimals: Token decimals (only for ERC20). Default is 18.
- totalSupply: Total supply in whole tokens (only for ERC20). Default is "1000000000".
- baseURI: Base URI for token metadata (only for ERC721/1155).
If any field is not provided, use the default value. If no default value is provided, use empty string.

` + jsonBlock(`{
    "chain": SUPPORTED_CHAINS,
    "contractType": "ERC20" | "ERC721" | "ERC1155",
    "name": string,
    "symbol": string | null,
    "decimals": number | null,
    "totalSupply": string | null,
    "baseURI": string | null
}
`)
)
