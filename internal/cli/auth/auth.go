package auth

import (
	"errors"
	"fmt"

	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/session"
	"github.com/julianstephens/keepup/internal/utils"
)

type SignUpCmd struct {
	Email string `help:"Account email. Prompted for when omitted."`
}

func (c *SignUpCmd) Run(ctx *cli.Context) error {
	email, password, err := ctx.Prompt.Credentials("Create your keepup account", c.Email)
	if err != nil {
		return err
	}

	sess, err := ctx.Sessions.SignUp(ctx.Ctx, email, password)
	if err != nil {
		return err
	}

	ctx.Printf("%s Welcome, %s\n", cli.SuccessStyle.Render("✓"), sess.User.Email)
	return nil
}

type LoginCmd struct {
	Email string `help:"Account email. Prompted for when omitted."`
}

func (c *LoginCmd) Run(ctx *cli.Context) error {
	email, password, err := ctx.Prompt.Credentials("Sign in to keepup", c.Email)
	if err != nil {
		return err
	}

	sess, err := ctx.Sessions.SignIn(ctx.Ctx, email, password)
	if err != nil {
		return err
	}

	ctx.Printf("%s Signed in as %s\n", cli.SuccessStyle.Render("✓"), sess.User.Email)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			ctx.Println("Not signed in.")
			return nil
		}
		return err
	}

	if err := ctx.Sessions.SignOut(ctx.Ctx, sess); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	ctx.Printf("%s Signed out %s\n", cli.SuccessStyle.Render("✓"), sess.User.Email)
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	now := ctx.Now()
	ctx.Printf("%s\n", cli.TitleStyle.Render(sess.User.Email))
	ctx.Printf("  Member since: %s\n", utils.FormatAbsoluteDate(sess.User.CreatedAt.In(ctx.Tracker.Location())))
	ctx.Printf("  Signed in:    %s\n", utils.FormatRelative(sess.Record.CreatedAt, now))
	ctx.Printf("  Expires:      %s\n", utils.FormatAbsoluteDate(sess.Record.ExpiresAt.In(ctx.Tracker.Location())))
	return nil
}
