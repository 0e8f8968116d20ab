// Package web3 defines the narrow chain client contracts the Arbitrum
// actions depend on. Read clients cover balances, ERC-20 metadata and
// receipts; write clients add signed submission of native transfers, token
// transfers, approvals and contract deployments. Concrete implementations
// live in subpackages so handlers can be exercised against fakes.
package web3
