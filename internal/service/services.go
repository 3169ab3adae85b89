package service

import (
	"log/slog"

	postgres "github.com/matchtix/matchtix/internal/repository/postgres"
	redis "github.com/matchtix/matchtix/internal/repository/redis"
	"github.com/matchtix/matchtix/internal/service/admin"
	"github.com/matchtix/matchtix/internal/service/booking"
	"github.com/matchtix/matchtix/internal/service/inventory"
	"github.com/matchtix/matchtix/internal/service/payment"
	"github.com/matchtix/matchtix/internal/service/query"
	"github.com/matchtix/matchtix/internal/uow"
)

type Services struct {
	Inventory *inventory.Service
	Booking   *booking.Service
	Payment   *payment.Service
	Query     *query.Service
	Admin     *admin.Service
}

type Config struct {
	Booking booking.Config
	Payment payment.Config
	Query   query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.SectionsPubSub,
	limiter *redis.SlidingWindowLimiter,
	gateway payment.Gateway,
	logger *slog.Logger,
	cfg Config,
) *Services {
	inv := inventory.New(store.Inventory())
	pay := payment.New(store.Bookings(), gateway, logger, cfg.Payment)

	return &Services{
		Inventory: inv,
		Booking:   booking.New(store.Catalog(), store.Bookings(), inv, pay, cache, pubsub, limiter, logger, cfg.Booking),
		Payment:   pay,
		Query:     query.New(store.Catalog(), store.Bookings(), cache, cfg.Query),
		Admin:     admin.New(admin.NewStores(store), uow.NewUoW(store), cache, logger),
	}
}
