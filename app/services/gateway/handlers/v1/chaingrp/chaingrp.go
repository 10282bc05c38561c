// Package chaingrp maintains the group of handlers for chain access.
package chaingrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cloakchain/gateway/business/web/errs"
	"github.com/cloakchain/gateway/foundation/chain/engine"
	"github.com/cloakchain/gateway/foundation/chain/state"
	"github.com/cloakchain/gateway/foundation/events"
	"github.com/cloakchain/gateway/foundation/web"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of chain endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SendTransaction accepts a raw signed transaction and mines it into the
// next block, blocking until the block is stored.
func (h Handlers) SendTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var st sendTx
	if err := web.Decode(r, &st); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	raw, err := hexutil.Decode(st.Tx)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid transaction encoding: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("send transaction", "traceid", v.TraceID, "bytes", len(raw))

	txHash, result, err := h.State.SendRawTransaction(raw)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, toSendResult(txHash, result), http.StatusOK)
}

// Simulate executes a transaction against a snapshot of the chain without
// mining it.
func (h Handlers) Simulate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	exec, err := h.simulate(r)
	if err != nil {
		return err
	}

	result := simulateResult{
		GasUsed:    exec.GasUsed,
		Refunded:   exec.Refunded,
		StatusCode: exec.Status,
		Logs:       exec.Logs,
		Output:     exec.Output,
	}
	if exec.Exception != nil {
		result.Exception = exec.Exception.Error()
	}

	return web.Respond(ctx, w, result, http.StatusOK)
}

// EstimateGas simulates a transaction and reports the gas it would consume.
func (h Handlers) EstimateGas(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	exec, err := h.simulate(r)
	if err != nil {
		return err
	}

	resp := struct {
		Gas uint64 `json:"gas"`
	}{
		Gas: exec.GasUsed + exec.Refunded,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.Genesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// GasPrice returns the minimum gas price a transaction must offer.
func (h Handlers) GasPrice(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		GasPrice *hexutil.Big `json:"gas_price"`
	}{
		GasPrice: (*hexutil.Big)(h.State.GasPrice()),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// LatestBlock returns the current best block.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blk := h.State.GetLatestBlock()
	return web.Respond(ctx, w, toBlock(blk), http.StatusOK)
}

// BlockByID returns the block identified by the :block parameter, which
// accepts "latest", "earliest", a hash, or a decimal number.
func (h Handlers) BlockByID(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := parseBlockID(web.Param(r, "block"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blk, err := h.State.GetBlockUnwrap(id)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, toBlock(blk), http.StatusOK)
}

// Transaction returns the localized transaction with the specified hash.
func (h Handlers) Transaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := common.HexToHash(web.Param(r, "hash"))

	blockTx, exists := h.State.GetTxnByHash(hash)
	if !exists {
		return errs.NewTrusted(errors.New("transaction not found"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, toTx(blockTx), http.StatusOK)
}

// Receipt returns the receipt for the transaction with the specified hash.
func (h Handlers) Receipt(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := common.HexToHash(web.Param(r, "hash"))

	receipt, exists := h.State.GetTxnReceiptByHash(hash)
	if !exists {
		return errs.NewTrusted(errors.New("receipt not found"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, receipt, http.StatusOK)
}

// Account returns the nonce, balance, and code for the specified address.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr := web.Param(r, "address")
	if !common.IsHexAddress(addr) {
		return errs.NewTrusted(fmt.Errorf("invalid address %q", addr), http.StatusBadRequest)
	}
	address := common.HexToAddress(addr)

	acct, err := h.State.QueryAccount(address)
	if err != nil {
		return err
	}

	resp := account{
		Address: address,
		Nonce:   acct.Nonce,
		Balance: acct.Balance,
		Code:    acct.Code,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Logs looks up log entries matching the posted filter.
func (h Handlers) Logs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var lf logsFilter
	if err := web.Decode(r, &lf); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	filter, err := lf.toFilter()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	logs, err := h.State.Logs(filter)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	if logs == nil {
		logs = []*types.Log{}
	}

	return web.Respond(ctx, w, logs, http.StatusOK)
}

// simulate decodes a simulation request and runs it on the simulator pool.
func (h Handlers) simulate(r *http.Request) (*engine.Executed, error) {
	var st simulateTx
	if err := web.Decode(r, &st); err != nil {
		return nil, fmt.Errorf("unable to decode payload: %w", err)
	}

	raw, err := hexutil.Decode(st.Tx)
	if err != nil {
		return nil, errs.NewTrusted(fmt.Errorf("invalid transaction encoding: %w", err), http.StatusBadRequest)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, errs.NewTrusted(errors.New("could not decode transaction"), http.StatusBadRequest)
	}

	id, err := parseBlockID(st.Block)
	if err != nil {
		return nil, errs.NewTrusted(err, http.StatusBadRequest)
	}

	exec, err := h.State.SimulateTransaction(tx, id)
	if err != nil {
		if errors.Is(err, state.ErrBlockNotFound) {
			return nil, errs.NewTrusted(err, http.StatusNotFound)
		}
		return nil, errs.NewTrusted(err, http.StatusBadRequest)
	}

	return exec, nil
}
