/*
Package wallet manages wallet lifecycle: provisioning one wallet per owner and
type, balance reads, freezing, closing and spending limits.

Balances are never changed here; money moves only through the transfer
engine. Status and limit updates are guarded by the wallet version, the same
guard the engine uses for debits, so a freeze that commits while a transfer is
in flight makes that transfer retry and observe the frozen status.

Usage:

	svc := wallet.NewService(store, cache, history, wallet.WalletConfig{}, collector, logger)

	w, err := svc.Provision(ctx, wallet.ProvisionRequest{
		OwnerType:  models.OwnerTypeUser,
		OwnerID:    userID,
		WalletType: models.WalletTypePersonal,
		Currency:   "INR",
	})

	bal, err := svc.GetBalance(ctx, w.ID)

Every call checks the actor in ctx (see package actor) against the wallet
owner. Balance reads are served from the cache when present; the engine
invalidates entries after each committed movement.
*/
package wallet
