package rpc

func (s *Server) routes() map[string]method {
	return map[string]method{
		"ledger_initialize":    authenticated(s.handleLedgerInitialize),
		"ledger_upgradeConfig": authenticated(s.handleLedgerUpgradeConfig),
		"ledger_setFee":        authenticated(s.handleLedgerSetFee),
		"ledger_get":           public(s.handleLedgerGet),

		"stake_open":     authenticated(s.handleStakeOpen),
		"stake_deposit":  authenticated(s.handleStakeDeposit),
		"stake_withdraw": authenticated(s.handleStakeWithdraw),
		"stake_harvest":  authenticated(s.handleStakeHarvest),
		"stake_position": public(s.handleStakePosition),

		"income_distribute":  authenticated(s.handleIncomeDistribute),
		"fees_harvest":       authenticated(s.handleFeesHarvest),
		"inflation_trigger":  authenticated(s.handleInflationTrigger),
		"treasury_fundVault": authenticated(s.handleTreasuryFundVault),

		"swap_buy":    authenticated(s.handleSwapBuy),
		"swap_redeem": authenticated(s.handleSwapRedeem),

		"distributor_seed":        authenticated(s.handleDistributorSeed),
		"distributor_claim":       public(s.handleDistributorClaim),
		"distributor_get":         public(s.handleDistributorGet),
		"distributor_claimStatus": public(s.handleDistributorClaimStatus),

		"token_createMint":  authenticated(s.handleTokenCreateMint),
		"token_openAccount": authenticated(s.handleTokenOpenAccount),
		"token_mintTo":      authenticated(s.handleTokenMintTo),
		"token_transfer":    authenticated(s.handleTokenTransfer),
		"token_balance":     public(s.handleTokenBalance),

		"history_events": public(s.handleHistoryEvents),
	}
}
