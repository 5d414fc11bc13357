package solana

// TokenAccount is a parsed SPL token account.
type TokenAccount struct {
	Pubkey   string
	Mint     string
	Owner    string
	Amount   string // raw integer amount as decimal string
	Decimals int
}
