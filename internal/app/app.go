package app

import (
	"os"

	"go.uber.org/fx"

	"github.com/Additional-Code/cannadmin/internal/cache"
	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/database"
	"github.com/Additional-Code/cannadmin/internal/logger"
	"github.com/Additional-Code/cannadmin/internal/messaging"
	"github.com/Additional-Code/cannadmin/internal/observability"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	repositoryactivity "github.com/Additional-Code/cannadmin/internal/repository/activity"
	repositorycustomer "github.com/Additional-Code/cannadmin/internal/repository/customer"
	repositorydelivery "github.com/Additional-Code/cannadmin/internal/repository/delivery"
	repositoryinventory "github.com/Additional-Code/cannadmin/internal/repository/inventory"
	repositoryorder "github.com/Additional-Code/cannadmin/internal/repository/order"
	repositorypos "github.com/Additional-Code/cannadmin/internal/repository/pos"
	repositoryproduct "github.com/Additional-Code/cannadmin/internal/repository/product"
	repositorysearch "github.com/Additional-Code/cannadmin/internal/repository/search"
	repositorystore "github.com/Additional-Code/cannadmin/internal/repository/store"
	grpcserver "github.com/Additional-Code/cannadmin/internal/server/grpc"
	httpserver "github.com/Additional-Code/cannadmin/internal/server/http"
	serviceactivity "github.com/Additional-Code/cannadmin/internal/service/activity"
	servicecustomer "github.com/Additional-Code/cannadmin/internal/service/customer"
	servicedelivery "github.com/Additional-Code/cannadmin/internal/service/delivery"
	serviceinventory "github.com/Additional-Code/cannadmin/internal/service/inventory"
	serviceorder "github.com/Additional-Code/cannadmin/internal/service/order"
	servicepos "github.com/Additional-Code/cannadmin/internal/service/pos"
	serviceproduct "github.com/Additional-Code/cannadmin/internal/service/product"
	servicesearch "github.com/Additional-Code/cannadmin/internal/service/search"
	servicestore "github.com/Additional-Code/cannadmin/internal/service/store"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	transporthttp "github.com/Additional-Code/cannadmin/internal/transport/http"
	"github.com/Additional-Code/cannadmin/internal/worker"
	"github.com/Additional-Code/cannadmin/internal/worker/changefeed"
	workerorder "github.com/Additional-Code/cannadmin/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	tenant.Module,
	realtime.Module,
	repositoryactivity.Module,
	repositorycustomer.Module,
	repositorydelivery.Module,
	repositoryinventory.Module,
	repositoryorder.Module,
	repositorypos.Module,
	repositoryproduct.Module,
	repositorysearch.Module,
	repositorystore.Module,
	serviceactivity.Module,
	servicecustomer.Module,
	servicedelivery.Module,
	serviceinventory.Module,
	serviceorder.Module,
	servicepos.Module,
	serviceproduct.Module,
	servicesearch.Module,
	servicestore.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules. Each API instance
// also tails the change feed so its websocket clients see writes made anywhere.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
	worker.Module,
	changefeed.Module,
	fx.Decorate(APIMessaging),
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP + gRPC).
var Module = HTTP

// APIMessaging gives an API instance its own consumer group reading from the newest
// offset, so every instance receives every change exactly once.
func APIMessaging(cfg config.Config) config.Config {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	cfg.Messaging.ConsumerGroup += "-api-" + host
	cfg.Messaging.Kafka.StartFromLatest = true
	cfg.Messaging.Workers.Enabled = cfg.Messaging.Enabled
	cfg.Messaging.Workers.Concurrency = 1
	return cfg
}
