// Package main implements the bootstrap CLI for a clinicremind environment.
//
// It walks an operator through the parameters the services resolve from SSM
// Parameter Store at cold start, writes them under /{env}/clinicremind/, and
// prints the *_SSM_PARAM variables to set on the deployed functions.
//
// Usage:
//
//	go run ./cmd/ops/bootstrap --env=dev
//	go run ./cmd/ops/bootstrap --env=prod --profile=clinic-prod --region=us-east-1
//	go run ./cmd/ops/bootstrap --env=dev --print-env
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// Session is the identity and AWS configuration a bootstrap run writes with.
type Session struct {
	Environment string
	AWSProfile  string
	AWSRegion   string
	AccountID   string
	CallerARN   string
	AWSConfig   aws.Config
	Logger      *slog.Logger
}

func main() {
	envFlag := flag.String("env", "", "Target environment (dev/staging/prod) [required]")
	profileFlag := flag.String("profile", "", "AWS CLI profile (default: uses default credential chain)")
	regionFlag := flag.String("region", "us-east-1", "AWS region")
	printEnvFlag := flag.Bool("print-env", false, "Only print the *_SSM_PARAM variables for the environment and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "clinicremind bootstrap\n\n")
		fmt.Fprintf(os.Stderr, "Populates SSM parameters required before the first deployment.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  bootstrap --env=dev [--profile=NAME] [--region=REGION] [--print-env]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *envFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --env is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if !validEnvironments[*envFlag] {
		fmt.Fprintf(os.Stderr, "error: invalid environment %q (must be dev, staging, or prod)\n", *envFlag)
		os.Exit(1)
	}

	if *printEnvFlag {
		PrintEnvBindings(os.Stdout, *envFlag, BuildInventory(NewValidator()))
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess, err := initializeSession(ctx, *envFlag, *profileFlag, *regionFlag, logger)
	if err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	if sess.Environment == "prod" && !confirmProduction(os.Stdin, os.Stderr, sess) {
		fmt.Fprintln(os.Stderr, "Aborted. No changes were made.")
		return
	}
	printBanner(os.Stderr, sess)

	runner := NewBootstrapRunner(sess)
	if err := runner.Run(ctx); err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, "Set these on the API and scheduler functions:")
	PrintEnvBindings(os.Stdout, sess.Environment, runner.inventory())
}

// initializeSession loads AWS configuration and confirms the active identity
// with STS before anything is written.
func initializeSession(ctx context.Context, env, profile, region string, logger *slog.Logger) (*Session, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	identityCtx, identityCancel := context.WithTimeout(ctx, 10*time.Second)
	defer identityCancel()

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(identityCtx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("verifying AWS identity (profile=%q region=%q): %w", profile, region, err)
	}

	sess := &Session{
		Environment: env,
		AWSProfile:  profile,
		AWSRegion:   region,
		AccountID:   aws.ToString(identity.Account),
		CallerARN:   aws.ToString(identity.Arn),
		AWSConfig:   cfg,
		Logger:      logger,
	}
	logger.Info("AWS identity verified", "account_id", sess.AccountID, "arn", sess.CallerARN, "region", region)
	return sess, nil
}

// confirmProduction returns true only when the operator types "yes".
func confirmProduction(in io.Reader, out io.Writer, sess *Session) bool {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  WARNING: You are targeting the PRODUCTION environment")
	fmt.Fprintf(out, "  Account: %s\n", sess.AccountID)
	fmt.Fprintf(out, "  Region:  %s\n", sess.AWSRegion)
	fmt.Fprintf(out, "  ARN:     %s\n", sess.CallerARN)
	fmt.Fprint(out, "\nType 'yes' to continue: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

func printBanner(out io.Writer, sess *Session) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "------------------------------------------------------------")
	fmt.Fprintln(out, "  clinicremind bootstrap")
	fmt.Fprintln(out, "------------------------------------------------------------")
	fmt.Fprintf(out, "  Environment:  %s\n", sess.Environment)
	fmt.Fprintf(out, "  AWS Account:  %s\n", sess.AccountID)
	fmt.Fprintf(out, "  AWS Region:   %s\n", sess.AWSRegion)
	if sess.AWSProfile != "" {
		fmt.Fprintf(out, "  Profile:      %s\n", sess.AWSProfile)
	}
	fmt.Fprintf(out, "  SSM Prefix:   %s\n", ssmPrefix(sess.Environment))
	fmt.Fprintln(out, "------------------------------------------------------------")
}
