package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "github.com/kardianos/minwinsvc"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/application"
	"github.com/eventrelay/relay/internal/logging"
	"github.com/eventrelay/relay/internal/system"
	"github.com/eventrelay/relay/relay"
	"github.com/eventrelay/relay/relay/version"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	logMsgStarting      = "Starting Relay version %s with %s"
	logMsgConfigError   = "Configuration error: %s"
	logMsgRelayError    = "Unable to create relay: %s"
	logMsgServerError   = "Unable to start server: %s"
	logMsgShutdownError = "Error during shutdown: %s"
)

func main() {
	loggers := logging.MakeDefaultLoggers()

	opts, err := application.ReadOptions(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	switch opts.Command {
	case application.CommandVersion:
		fmt.Println(application.DescribeRelayVersion(version.Version))
	case application.CommandCredentialsGenerate:
		exitOnError(generateCredentials(opts))
	case application.CommandCredentialsShow:
		exitOnError(showCredentials(opts))
	case application.CommandCredentialsRemove:
		exitOnError(removeCredentials(opts))
	case application.CommandConfigShow:
		c, err := loadConfig(opts, loggers)
		exitOnError(err)
		showConfig(c)
	case application.CommandRun:
		os.Exit(run(opts, loggers))
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(opts application.Options, loggers ldlog.Loggers) (config.Config, error) {
	c := config.DefaultConfig
	if err := config.LoadConfig(&c, opts.ConfigFile(), opts.UseEnvironment, loggers); err != nil {
		return c, err
	}
	if c.Relay.ConfigDir == "" {
		c.Relay.ConfigDir = opts.ConfigDir
	}
	return c, nil
}

func run(opts application.Options, loggers ldlog.Loggers) int {
	loggers.Infof(logMsgStarting, application.DescribeRelayVersion(version.Version), opts.DescribeConfigSource())

	c, err := loadConfig(opts, loggers)
	if err != nil {
		loggers.Errorf(logMsgConfigError, err)
		return 1
	}

	r, err := relay.NewRelay(c, loggers)
	if err != nil {
		loggers.Errorf(logMsgRelayError, err)
		return 1
	}

	srv, errCh, err := application.StartHTTPServer(application.ServerConfigFromRelayConfig(c.Relay), r, loggers)
	if err != nil {
		loggers.Errorf(logMsgServerError, err)
		_ = r.Close()
		return 1
	}

	controller := system.NewController(c.Limits.ShutdownTimeout.GetOrElse(config.DefaultShutdownTimeout), loggers)
	handle := controller.ShutdownHandle()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go controller.Run(ctx)

	exitCode := 0
	select {
	case err := <-errCh:
		loggers.Error(err)
		if c.Relay.ExitOnError {
			exitCode = 1
		}
		cancel()
	case <-handle.Notified():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), controller.Timeout())
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggers.Warnf(logMsgShutdownError, err)
	}
	if err := r.Close(); err != nil {
		loggers.Warnf(logMsgShutdownError, err)
	}
	return exitCode
}

func generateCredentials(opts application.Options) error {
	creds := config.GenerateCredentials()
	if opts.Stdout {
		data, err := json.MarshalIndent(creds, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	if err := config.SaveCredentials(opts.ConfigDir, creds, opts.Overwrite); err != nil {
		return err
	}
	fmt.Printf("Generated credentials for relay %s\n", creds.ID)
	fmt.Printf("  public key: %s\n", creds.PublicKey)
	return nil
}

func showCredentials(opts application.Options) error {
	creds, err := config.LoadCredentials(opts.ConfigDir)
	if err != nil {
		return err
	}
	if creds == nil {
		return fmt.Errorf("no credentials in %s", opts.ConfigDir)
	}
	fmt.Printf("Relay ID:   %s\n", creds.ID)
	fmt.Printf("Public key: %s\n", creds.PublicKey)
	return nil
}

func removeCredentials(opts application.Options) error {
	path := config.CredentialsPath(opts.ConfigDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No credentials to remove")
		return nil
	}
	if !opts.Yes && !confirm(fmt.Sprintf("Remove %s?", path)) {
		return nil
	}
	return os.Remove(path)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func showConfig(c config.Config) {
	sc := application.ServerConfigFromRelayConfig(c.Relay)
	fmt.Printf("mode:       %s\n", c.Relay.Mode)
	fmt.Printf("upstream:   %s\n", c.Relay.Upstream)
	fmt.Printf("listen:     %s\n", sc.Addr())
	fmt.Printf("tls:        %t\n", c.Relay.TLSEnabled)
	fmt.Printf("config dir: %s\n", c.Relay.ConfigDir)
	fmt.Printf("processing: %t\n", c.Processing.Enabled)
	fmt.Printf("outcomes:   %t\n", c.Outcomes.Emit)
	fmt.Printf("log level:  %s\n", c.Logging.Level.GetOrElse(ldlog.Info))
}
