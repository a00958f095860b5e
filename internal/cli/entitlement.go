package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/membership/internal/entitlement"
)

// EntitlementOptions holds flags for the entitlement command.
type EntitlementOptions struct {
	*RootOptions
	Wallet     string
	Email      string
	Access     bool
	KeyID      string
	KeyExpires string
}

// EntitlementResult is the output of the entitlement command. Access is set
// only with --access.
type EntitlementResult struct {
	entitlement.Result
	Access *entitlement.AccessView `json:"access,omitempty"`
}

func (r EntitlementResult) renderText(w io.Writer) {
	line := func(label string, e *entitlement.Entitlement) {
		if e == nil {
			return
		}
		fmt.Fprintf(w, "%-7s %s", label+":", e.Status)
		if e.Tier != nil {
			fmt.Fprintf(w, " (%s)", *e.Tier)
		}
		if e.Source != nil {
			fmt.Fprintf(w, " [%s]", *e.Source)
		}
		if e.Note != nil && *e.Note != "" {
			fmt.Fprintf(w, " %s", *e.Note)
		}
		fmt.Fprintln(w)
	}
	line("wallet", r.Wallet)
	line("email", r.Email)
	fmt.Fprintf(w, "%-7s %s\n", "overall:", r.Overall)
	if r.Access != nil {
		fmt.Fprintf(w, "access:  %t (collectible %t", r.Access.HasAccess, r.Access.HoldsCollectible)
		if k := r.Access.AccessKey; k != nil {
			expires := "never"
			if k.ExpiresAt != nil {
				expires = fmtTime(*k.ExpiresAt)
			}
			fmt.Fprintf(w, ", key %s valid %t expires %s", k.KeyID, k.Valid, expires)
		}
		fmt.Fprintln(w, ")")
	}
}

// NewEntitlementCommand creates the entitlement command.
func NewEntitlementCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntitlementOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "entitlement",
		Short: "Resolve allowlist status for a wallet or email",
		Long: `Resolve a wallet address and/or email against the operator allowlist
(ALLOWLIST_WALLETS, ALLOWLIST_EMAILS) and the seed allowlist. Operator
entries win over seed entries for the same identifier.

With --access, the wallet is also checked against collectible holders in
the store and an optional access key.

Examples:
  memberctl entitlement --wallet 0x8ba1f109551bD432803012645Ac136ddd64DBA72
  memberctl entitlement --email host@example.com --format json
  memberctl entitlement --wallet 0xabc --access --key-id k1 --key-expires 2026-01-01T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportError(opts.RootOptions, cmd, runEntitlement(opts, cmd))
		},
	}

	cmd.Flags().StringVar(&opts.Wallet, "wallet", "", "wallet address")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().BoolVar(&opts.Access, "access", false, "also build the wallet's credential access view")
	cmd.Flags().StringVar(&opts.KeyID, "key-id", "", "access key presented by the wallet")
	cmd.Flags().StringVar(&opts.KeyExpires, "key-expires", "", "access key expiry (RFC 3339)")

	return cmd
}

func runEntitlement(opts *EntitlementOptions, cmd *cobra.Command) error {
	if strings.TrimSpace(opts.Wallet) == "" && strings.TrimSpace(opts.Email) == "" {
		return NewExitError(ExitCommandError, "one of --wallet or --email is required")
	}
	if opts.Access && strings.TrimSpace(opts.Wallet) == "" {
		return NewExitError(ExitCommandError, "--access requires --wallet")
	}
	var key *entitlement.AccessKey
	if opts.KeyID != "" {
		key = &entitlement.AccessKey{KeyID: opts.KeyID, Valid: true}
		if opts.KeyExpires != "" {
			exp, err := time.Parse(time.RFC3339, opts.KeyExpires)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --key-expires", err)
			}
			key.ExpiresAt = exp
		}
	}

	ctx := cmd.Context()
	a, err := newApp(opts.RootOptions, opts.Access)
	if err != nil {
		return err
	}
	defer a.close()

	resolver, err := a.resolver()
	if err != nil {
		return err
	}
	result := EntitlementResult{
		Result: resolver.Lookup(entitlement.Query{WalletAddress: opts.Wallet, Email: opts.Email}),
	}

	if opts.Access {
		store, err := a.members(ctx)
		if err != nil {
			return err
		}
		holders, err := store.HolderAddresses(ctx, "")
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read collectible holders", err)
		}
		view := entitlement.BuildAccessView(opts.Wallet, holders, key, nil, a.now())
		result.Access = &view
	}
	return formatter(opts.RootOptions, cmd.OutOrStdout()).Success(result)
}
