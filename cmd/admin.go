package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/tasks"
	"github.com/urfave/cli/v3"
)

// userView is the printable part of a stored credential. Tokens and the key itself are left out.
type userView struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"providerId"`
	Email      string    `json:"email"`
	HasAPIKey  bool      `json:"hasApiKey"`
	Banned     bool      `json:"isBanned"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newUserView(cred *models.UserCredential) userView {
	return userView{
		ID:         cred.ID(),
		ProviderID: cred.ProviderID(),
		Email:      cred.Email(),
		HasAPIKey:  cred.HasAPIKey(),
		Banned:     cred.IsBanned(),
		CreatedAt:  cred.CreatedAt(),
		UpdatedAt:  cred.UpdatedAt(),
	}
}

func keyStatus(issued bool) string {
	if issued {
		return "issued"
	}
	return "none"
}

// KeysIssue replaces the user's API key and prints the new one.
func (r *Runner) KeysIssue(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	providerID := cmd.String("provider-id")
	issuer := tasks.NewKeyIssuer(repositories.NewCredentialRepository(db), r.logger)

	key, err := issuer.Issue(ctx, providerID)
	if err != nil {
		return fmt.Errorf("failed to issue key for %s: %w", providerID, err)
	}

	return r.writeLines(
		r.palette.Success("API key issued"),
		r.palette.Field("Provider ID", providerID),
		r.palette.Field("API key", key),
	)
}

// UsersShow prints one stored user.
func (r *Runner) UsersShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	cred, err := repositories.NewCredentialRepository(db).FindByProviderID(ctx, cmd.String("provider-id"))
	if err != nil {
		return err
	}

	view := newUserView(cred)
	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}

	return r.writeLines(
		r.palette.Title(view.Email),
		r.palette.Field("ID", view.ID),
		r.palette.Field("Provider ID", view.ProviderID),
		r.palette.Field("API key", keyStatus(view.HasAPIKey)),
		r.palette.Field("Banned", strconv.FormatBool(view.Banned)),
		r.palette.Field("Created", view.CreatedAt.Format(time.RFC3339)),
		r.palette.Field("Updated", view.UpdatedAt.Format(time.RFC3339)),
	)
}

// UsersBan sets or clears the banned flag.
func (r *Runner) UsersBan(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	providerID := cmd.String("provider-id")
	banned := !cmd.Bool("undo")

	if err := repositories.NewCredentialRepository(db).SetBanned(ctx, providerID, banned); err != nil {
		return err
	}

	r.logger.Info("ban updated", "provider_id", providerID, "banned", banned)
	if banned {
		return r.writeLines(r.palette.Success(providerID + " banned"))
	}
	return r.writeLines(r.palette.Success(providerID + " unbanned"))
}

// UsersCount prints the number of stored users.
func (r *Runner) UsersCount(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := repositories.NewCredentialRepository(db).Count(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%d\n", n)
}

// CredsGet calls GET /spotifyCreds on a running server and prints the token pair.
func (r *Runner) CredsGet(ctx context.Context, cmd *cli.Command) error {
	client := services.NewCredentialsClient(cmd.String("url"), r.httpClient)

	tokens, err := client.Get(ctx, cmd.String("key"))
	if err != nil {
		return fmt.Errorf("credentials request failed: %w", err)
	}

	return r.writeJSON(tokens, cmd.Bool("pretty"))
}
