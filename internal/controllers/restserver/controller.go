// Package restserver serves stored recharge runs over a read-only HTTP API.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/wellrecharge/internal/log"
	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	store      storage.Store
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller reading runs from store
func NewController(ctx context.Context, wg *sync.WaitGroup, store storage.Store, rc config.RESTServerData, logger *zap.SugaredLogger) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("the REST server needs a configured run store")
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		store:      store,
		logger:     logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}
	ctrl.restConfig = rc

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server. It shuts down when the controller's
// context is cancelled.
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(ctx)
	}()

	return nil
}

// Handler returns the router with every endpoint
func (c *Controller) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	api := router.Methods(http.MethodGet).Subrouter()
	api.HandleFunc("/runs", c.handlers.GetRuns)
	api.HandleFunc("/runs/{id}", c.handlers.GetRun)
	api.HandleFunc("/runs/{id}/recharge", c.handlers.GetRecharge)
	api.HandleFunc("/runs/{id}/level", c.handlers.GetLevel)
	api.HandleFunc("/runs/{id}/members", c.handlers.GetMembers)

	return router
}
