// Package main is a command line client for the products service. It reads the same
// configuration as the service and talks to it over NATS.
//
// Usage:
//
//	productsctl create -name Desk -price 199.90
//	productsctl list -page 1 -limit 10
//	productsctl get -id 1
//	productsctl update -id 1 -name "Standing desk"
//	productsctl remove -id 1
//	productsctl validate 1 2 3
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/abgdnv/products-ms/internal/app"
	"github.com/abgdnv/products-ms/internal/config"
	"github.com/abgdnv/products-ms/internal/service"
	"github.com/abgdnv/products-ms/pkg/bootstrap"
	"github.com/abgdnv/products-ms/pkg/config/configloader"
	pnats "github.com/abgdnv/products-ms/pkg/nats"
	"github.com/shopspring/decimal"
)

const serviceName = "products"

var errUsage = errors.New("usage: productsctl <create|list|get|update|remove|validate> [flags]")

// productsAPI is the subset of rpc.Client used by the commands.
type productsAPI interface {
	Create(ctx context.Context, name string, price decimal.Decimal) (*service.ProductDto, error)
	FindAll(ctx context.Context, page, limit int32) (*service.PagedProducts, error)
	FindOne(ctx context.Context, id int64) (*service.ProductDto, error)
	Update(ctx context.Context, id int64, fields map[string]any) (*service.ProductDto, error)
	Remove(ctx context.Context, id int64) (*service.ProductDto, error)
	Validate(ctx context.Context, ids []int64) ([]service.ProductDto, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Printf("productsctl: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := configloader.Load[*config.Config](serviceName)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := bootstrap.NewLogger(cfg.Log.Level)
	decimal.MarshalJSONWithoutQuotes = true

	nc, err := pnats.NewClient(cfg.Nats.Url, serviceName+"-ctl", cfg.Nats.Timeout, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.RPC.Timeout)
	defer cancel()
	return execute(ctx, app.SetupRPCClient(nc, cfg), args, os.Stdout)
}

// execute runs one command against client and prints its result as JSON to out.
func execute(ctx context.Context, client productsAPI, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var result any
	var err error
	switch cmd {
	case "create":
		name := fs.String("name", "", "product name")
		price := fs.String("price", "", "product price")
		if err = fs.Parse(args); err != nil {
			return err
		}
		p, perr := decimal.NewFromString(*price)
		if perr != nil {
			return fmt.Errorf("invalid price %q: %w", *price, perr)
		}
		result, err = client.Create(ctx, *name, p)
	case "list":
		page := fs.Int("page", 1, "page number")
		limit := fs.Int("limit", 10, "page size")
		if err = fs.Parse(args); err != nil {
			return err
		}
		result, err = client.FindAll(ctx, int32(*page), int32(*limit))
	case "get", "remove":
		id := fs.Int64("id", 0, "product id")
		if err = fs.Parse(args); err != nil {
			return err
		}
		if cmd == "get" {
			result, err = client.FindOne(ctx, *id)
		} else {
			result, err = client.Remove(ctx, *id)
		}
	case "update":
		id := fs.Int64("id", 0, "product id")
		name := fs.String("name", "", "new name")
		price := fs.String("price", "", "new price")
		if err = fs.Parse(args); err != nil {
			return err
		}
		fields := map[string]any{}
		if *name != "" {
			fields["name"] = *name
		}
		if *price != "" {
			p, perr := decimal.NewFromString(*price)
			if perr != nil {
				return fmt.Errorf("invalid price %q: %w", *price, perr)
			}
			fields["price"] = p
		}
		result, err = client.Update(ctx, *id, fields)
	case "validate":
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, perr := strconv.ParseInt(arg, 10, 64)
			if perr != nil {
				return fmt.Errorf("invalid id %q: %w", arg, perr)
			}
			ids = append(ids, id)
		}
		result, err = client.Validate(ctx, ids)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
