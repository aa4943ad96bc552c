package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/Atticdm/Yeet/internal/config"
	"github.com/Atticdm/Yeet/internal/credentials"
)

func runLogin(args []string) int {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	fs.SetOutput(stderr)

	configPath := configFlag(fs)
	cookieArg := fs.String("cookies", "", "Cookies as a Cookie header, JSON object or browser export (default: read stdin)")
	force := fs.Bool("force", false, "Store cookies even if the login cookies are missing")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: yeet login [options] <service>

Store login cookies for a service. Log in with a browser first, then
export the site's cookies. Run 'yeet services' for the supported services.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: a service is required")
		fs.Usage()
		return ExitInvalidArgs
	}
	svc, ok := credentials.Lookup(fs.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown service %q\n", fs.Arg(0))
		return ExitInvalidArgs
	}

	raw := *cookieArg
	if raw == "" {
		fmt.Fprintf(stderr, "[yeet] Log in to %s at %s and paste the cookies:\n", svc.DisplayName, svc.LoginURL)
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading cookies: %v\n", err)
			return ExitGeneralError
		}
		raw = string(data)
	}

	cookies, err := credentials.ParseCookies(raw)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if missing := svc.Missing(cookies); len(missing) > 0 && !*force {
		fmt.Fprintf(stderr, "Error: missing %s login cookies: %s (use -force to store anyway)\n",
			svc.DisplayName, strings.Join(missing, ", "))
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx := context.Background()
	store, err := openCredentials(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer store.Close()

	if err := store.Save(ctx, svc.Name, cookies); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	fmt.Fprintf(stderr, "[yeet] Stored %d cookie(s) for %s\n", len(cookies), svc.DisplayName)
	return ExitSuccess
}

func runLogout(args []string) int {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.SetOutput(stderr)

	configPath := configFlag(fs)

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: yeet logout [options] <service>

Remove the stored cookies of a service.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: a service is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx := context.Background()
	store, err := openCredentials(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer store.Close()

	if err := store.Delete(ctx, fs.Arg(0)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, credentials.ErrUnknownService) {
			return ExitInvalidArgs
		}
		return ExitStorageError
	}
	fmt.Fprintf(stderr, "[yeet] Removed cookies for %s\n", fs.Arg(0))
	return ExitSuccess
}

func runServices(args []string) int {
	fs := flag.NewFlagSet("services", flag.ExitOnError)
	fs.SetOutput(stderr)

	configPath := configFlag(fs)

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx := context.Background()
	store, err := openCredentials(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer store.Close()

	stored, err := store.List(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tLOGGED IN\tLOGIN URL")
	for _, svc := range credentials.Services() {
		loggedIn := "no"
		if slices.Contains(stored, svc.Name) {
			loggedIn = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", svc.Name, loggedIn, svc.LoginURL)
	}
	tw.Flush()
	return ExitSuccess
}
