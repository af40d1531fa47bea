package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/plexio/internal/server"
	"github.com/desertthunder/plexio/internal/services"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/urfave/cli/v3"
)

// Login performs the plex.tv PIN flow and saves the chosen server to the config file.
//
// A local callback server is started so the browser lands on a "return to the terminal" page
// after approval; hitting it triggers an immediate PIN check. If the port is taken the flow
// continues without it and relies on polling alone.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	opts := r.account
	if opts.ClientID == "" {
		opts.ClientID = r.config.Plex.ClientID
	}
	opts.Logger = r.logger
	account := services.NewPlexAccount(opts)

	pin, err := account.CreatePIN(ctx)
	if err != nil {
		return err
	}

	callback := server.NewLoginCallback(shared.GenerateID())
	var pokes <-chan struct{}
	forwardURL := ""

	router := server.NewMux()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(callback)

	srv, err := server.Start(r.config.Server.Addr(), router)
	if err != nil {
		r.logger.Warn("callback server unavailable, falling back to polling", "error", err)
	} else {
		r.logger.Debug("callback server started", "addr", srv.Addr())
		defer r.shutdown(srv)
		forwardURL = callback.CallbackURL(srv.URL(""))
		pokes = callback.Pokes()
	}

	authURL := account.AuthURL(pin.Code, forwardURL)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser to sign in:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Plex sign-in...\n")
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for approval (%s timeout)...\n", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	token, err := account.WaitForToken(waitCtx, pin, cmd.Duration("poll"), pokes)
	if err != nil {
		return err
	}

	resources, err := account.Resources(ctx, token)
	if err != nil {
		return err
	}
	res, err := services.SelectServer(resources)
	if err != nil {
		return err
	}

	plex := r.config.Plex
	svc, err := account.Connect(ctx, *res, services.PlexOpts{
		Timeout:           plex.Timeout(),
		RequestsPerSecond: plex.RequestsPerSecond,
		MaxRetries:        plex.MaxRetries,
		Logger:            r.logger,
	})
	if err != nil {
		return err
	}

	r.config.Plex.Token = res.AccessToken
	r.config.Plex.ServerURL = svc.BaseURL()
	r.config.Plex.ServerName = svc.Name()
	r.config.Plex.ClientID = account.ClientID()
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Signed in to %s", svc.Name())
	r.writePlain("✓ Server saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: plexio playlists list\n")
	return nil
}

func (r *Runner) shutdown(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}
}
