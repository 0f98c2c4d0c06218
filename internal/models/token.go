package models

// Mint describes a fungible token type.
type Mint struct {
	Address       string `json:"address"`
	Decimals      uint8  `json:"decimals"`
	Supply        uint64 `json:"supply"`
	MintAuthority string `json:"mint_authority"`
}

// TokenAccount is a balance of one mint held for one owner. The reward pool
// is a TokenAccount owned by the program.
type TokenAccount struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

type BalanceResponse struct {
	Owner   string `json:"owner"`
	Account string `json:"account"`
	Mint    string `json:"mint"`
	Amount  uint64 `json:"amount"`
	Display string `json:"display"`
}
