package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/account"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/product"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	productsFile string
	fixturesFile string
	tokenPepper  string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "products JSON file, optionally gzip-compressed (.gz)")
	flag.StringVar(&opts.fixturesFile, "fixtures-file", "db/seed/fixtures.json", "demo accounts and clients JSON file")
	flag.StringVar(&opts.tokenPepper, "token-pepper", "", "HMAC pepper for bearer tokens (or PARA_TOKEN_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.tokenPepper == "" {
		opts.tokenPepper = os.Getenv("PARA_TOKEN_PEPPER")
	}
	if opts.tokenPepper == "" {
		lg.Fatal("Token pepper is required: set --token-pepper or PARA_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL, postgres.PoolConfig{MaxConns: 4})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := readProducts(opts.productsFile)
		if err != nil {
			return errors.Wrap(err, "read products")
		}
		if err := postgres.NewProductRepository(pool).Upsert(gctx, products); err != nil {
			return err
		}
		lg.Info("Upserted products", zap.Int("count", len(products)))
		return nil
	})
	g.Go(func() error {
		f, err := readFixtures(opts.fixturesFile)
		if err != nil {
			return errors.Wrap(err, "read fixtures")
		}
		return seedFixtures(gctx, lg, pool, f, []byte(opts.tokenPepper))
	})
	return g.Wait()
}

// open returns the file contents, transparently gunzipping .gz files.
func open(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(name, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return io.ReadAll(r)
}

func readProducts(name string) ([]product.Product, error) {
	data, err := open(name)
	if err != nil {
		return nil, err
	}
	var products []product.Product
	err = jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Int64()
			case "name":
				p.Name, err = d.Str()
			case "brand":
				p.Brand, err = d.Str()
			case "price":
				p.Price, err = decodeDecimal(d)
			case "inStock":
				p.InStock, err = d.Bool()
			default:
				err = d.Skip()
			}
			return errors.Wrapf(err, "field %q", key)
		}); err != nil {
			return errors.Wrapf(err, "product %d", len(products))
		}
		if p.ID < 1 || p.Name == "" || p.Price.IsNegative() {
			return errors.Errorf("product %d: id, name and a non-negative price are required", len(products))
		}
		products = append(products, p)
		return nil
	})
	return products, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

type seedAccount struct {
	token        string
	registration account.Registration
}

type seedClient struct {
	owner  string
	client postgres.Client
}

type fixtures struct {
	accounts []seedAccount
	clients  []seedClient
}

func readFixtures(name string) (*fixtures, error) {
	data, err := open(name)
	if err != nil {
		return nil, err
	}
	var f fixtures
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "accounts":
			return d.Arr(func(d *jx.Decoder) error {
				var a seedAccount
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "token":
						a.token, err = d.Str()
					case "registration":
						a.registration, err = account.DecodeRegistration(d)
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return errors.Wrapf(err, "account %d", len(f.accounts))
				}
				f.accounts = append(f.accounts, a)
				return nil
			})
		case "clients":
			return d.Arr(func(d *jx.Decoder) error {
				var c seedClient
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var dst *string
					switch key {
					case "owner":
						dst = &c.owner
					case "name":
						dst = &c.client.Name
					case "email":
						dst = &c.client.Email
					case "phone":
						dst = &c.client.Phone
					case "address":
						dst = &c.client.Address
					case "city":
						dst = &c.client.City
					default:
						return d.Skip()
					}
					s, err := d.Str()
					*dst = s
					return err
				}); err != nil {
					return errors.Wrapf(err, "client %d", len(f.clients))
				}
				f.clients = append(f.clients, c)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return &f, err
}

// seedFixtures registers accounts with their tokens, then the demo clients
// of their business owners.
func seedFixtures(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, f *fixtures, pepper []byte) error {
	accounts := postgres.NewAccountRepository(pool)
	clients := postgres.NewClientRepository(pool)

	owners := make(map[string]int64, len(f.accounts))
	for _, a := range f.accounts {
		if a.registration == nil {
			return errors.New("account without registration")
		}
		acc, err := accounts.Register(ctx, a.registration)
		if err != nil {
			return err
		}
		owners[strings.ToLower(acc.Email)] = acc.ID
		if a.token != "" {
			if err := accounts.IssueToken(ctx, acc.ID, account.HashToken(pepper, a.token)); err != nil {
				return err
			}
		}
		lg.Info("Registered account",
			zap.Int64("id", acc.ID),
			zap.String("type", string(acc.Type)),
			zap.String("email", acc.Email),
		)
	}

	for _, c := range f.clients {
		id, ok := owners[strings.ToLower(c.owner)]
		if !ok {
			return errors.Errorf("client %q: unknown owner %q", c.client.Email, c.owner)
		}
		c.client.OwnerID = id
		if err := clients.CreateClient(ctx, c.client); err != nil {
			return err
		}
	}
	lg.Info("Seeded clients", zap.Int("count", len(f.clients)))
	return nil
}
