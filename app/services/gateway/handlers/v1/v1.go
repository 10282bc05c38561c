// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/cloakchain/gateway/app/services/gateway/handlers/v1/chaingrp"
	"github.com/cloakchain/gateway/foundation/chain/state"
	"github.com/cloakchain/gateway/foundation/events"
	"github.com/cloakchain/gateway/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	cgh := chaingrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", cgh.Events)
	app.Handle(http.MethodGet, version, "/genesis/list", cgh.Genesis)
	app.Handle(http.MethodGet, version, "/gas/price", cgh.GasPrice)
	app.Handle(http.MethodGet, version, "/block/latest", cgh.LatestBlock)
	app.Handle(http.MethodGet, version, "/block/:block", cgh.BlockByID)
	app.Handle(http.MethodGet, version, "/tx/:hash", cgh.Transaction)
	app.Handle(http.MethodGet, version, "/tx/receipt/:hash", cgh.Receipt)
	app.Handle(http.MethodGet, version, "/account/:address", cgh.Account)
	app.Handle(http.MethodPost, version, "/tx/send", cgh.SendTransaction)
	app.Handle(http.MethodPost, version, "/tx/simulate", cgh.Simulate)
	app.Handle(http.MethodPost, version, "/tx/estimate", cgh.EstimateGas)
	app.Handle(http.MethodPost, version, "/logs/list", cgh.Logs)
}
