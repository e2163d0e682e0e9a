package solana

import "github.com/gagliardetto/solana-go"

// ProgramRole is the semantic role of a known on-chain program.
type ProgramRole string

const (
	RoleSwapRouter     ProgramRole = "swap-router"
	RoleTokenProgram   ProgramRole = "token-program"
	RoleNFTMarketplace ProgramRole = "nft-marketplace"
	RoleStakeProgram   ProgramRole = "stake-program"
)

// Well-known Solana program IDs referenced by the classifier rules.
var (
	JupiterV6ProgramID    = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	JupiterV4ProgramID    = solana.MustPublicKeyFromBase58("JUP4Fb2cqiRUcaTHdrPC8h2gNsA2ETXiPDD33WcGuJB")
	RaydiumAMMProgramID   = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OrcaWhirlpoolID       = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	TokenProgramID        = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	MetaplexProgramID     = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	StakeProgramID        = solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111")
)

// programInfo describes a registered program: its role drives classification,
// its name feeds human-readable descriptions ("Jupiter Swap" etc.).
type programInfo struct {
	Role ProgramRole
	Name string
}

// knownPrograms is the program registry. Classification logic never compares
// program IDs directly; new programs are supported by adding entries here.
var knownPrograms = map[solana.PublicKey]programInfo{
	JupiterV6ProgramID:  {RoleSwapRouter, "Jupiter"},
	JupiterV4ProgramID:  {RoleSwapRouter, "Jupiter"},
	RaydiumAMMProgramID: {RoleSwapRouter, "Raydium"},
	OrcaWhirlpoolID:     {RoleSwapRouter, "Orca"},
	TokenProgramID:      {RoleTokenProgram, "Token Program"},
	MetaplexProgramID:   {RoleNFTMarketplace, "Metaplex"},
	StakeProgramID:      {RoleStakeProgram, "Stake Program"},
}

// LookupProgram returns registry information for a program ID.
func LookupProgram(id solana.PublicKey) (ProgramRole, string, bool) {
	info, ok := knownPrograms[id]
	return info.Role, info.Name, ok
}

// firstProgramWithRole scans program IDs in order and returns the name of the
// first one registered under the given role.
func firstProgramWithRole(ids []solana.PublicKey, role ProgramRole) (string, bool) {
	for _, id := range ids {
		if info, ok := knownPrograms[id]; ok && info.Role == role {
			return info.Name, true
		}
	}
	return "", false
}
