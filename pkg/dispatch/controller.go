package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gridslack/gridslack/pkg/log"
	"github.com/gridslack/gridslack/pkg/storage"
	"github.com/gridslack/gridslack/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// Signal is the grid input one dispatch decision is made against.
type Signal struct {
	PriceCADPerMWH        float64 `json:"priceCADPerMWH"`
	CurtailmentRisk       bool    `json:"curtailmentRisk"`
	RenewableGenerationMW float64 `json:"renewableGenerationMW"`
	DemandMW              float64 `json:"demandMW"`
}

// Decision is the output of the dispatch policy before any state is mutated.
type Decision struct {
	Action                types.DispatchAction `json:"action"`
	PowerMW               float64              `json:"powerMW"`
	DurationHours         float64              `json:"durationHours"`
	Reason                types.DispatchReason `json:"reason"`
	Detail                string               `json:"detail"`
	ExpectedRevenueCAD    float64              `json:"expectedRevenueCAD"`
	RenewableAbsorption   bool                 `json:"renewableAbsorption"`
	CurtailmentMitigation bool                 `json:"curtailmentMitigation"`
}

// Controller runs the battery dispatch policy per grid area. Batteries are
// created lazily on first dispatch and persisted through the storage layer.
type Controller struct {
	cfg Config
	db  storage.Database
	now func() time.Time

	mu    sync.Mutex
	areas map[string]*sync.Mutex
}

// New returns a Controller using the given policy and storage.
func New(cfg Config, db storage.Database) *Controller {
	return &Controller{
		cfg:   cfg,
		db:    db,
		now:   time.Now,
		areas: make(map[string]*sync.Mutex),
	}
}

// Configured returns a Controller whose policy can be overridden with flags.
// Call lflag.Configure before using the returned instance.
func Configured(db storage.Database) *Controller {
	c := New(DefaultConfig(), db)
	cfg := c.cfg
	lflag.JSON(&cfg, "dispatch-config", cfg, "JSON dispatch policy: price thresholds, SoC bounds, efficiency and area battery profiles")
	lflag.Do(func() {
		c.cfg = cfg
	})
	return c
}

// areaLock returns the per-area mutex so dispatches for different areas can
// proceed concurrently while dispatches within one area serialize.
func (c *Controller) areaLock(area string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.areas[area]
	if !ok {
		m = new(sync.Mutex)
		c.areas[area] = m
	}
	return m
}

// Decide applies the dispatch policy to the current battery state and grid
// signal. It is pure: no state is read or written.
func (c *Controller) Decide(state types.BatteryState, sig Signal) Decision {
	hold := Decision{
		Action:        types.DispatchHold,
		DurationHours: c.cfg.DurationHours,
		Reason:        types.ReasonHold,
	}
	if math.IsNaN(sig.PriceCADPerMWH) || math.IsInf(sig.PriceCADPerMWH, 0) {
		hold.Detail = "invalid price signal"
		return hold
	}

	wantCharge := sig.CurtailmentRisk || sig.PriceCADPerMWH < c.cfg.ChargePriceThresholdCADPerMWH
	if wantCharge && state.SOCPercent < c.cfg.MaxSOCPercent {
		headroomMW := (c.cfg.MaxSOCPercent - state.SOCPercent) / 100 * state.CapacityMWH / c.cfg.DurationHours
		power := math.Min(state.PowerRatingMW, headroomMW)
		d := Decision{
			Action:        types.DispatchCharge,
			PowerMW:       power,
			DurationHours: c.cfg.DurationHours,
			// Charging is worth the spread between the discharge threshold
			// and the price paid now.
			ExpectedRevenueCAD:  power * c.cfg.DurationHours * (c.cfg.DischargePriceThresholdCADPerMWH - sig.PriceCADPerMWH),
			RenewableAbsorption: sig.CurtailmentRisk,
		}
		if sig.CurtailmentRisk {
			d.Reason = types.ReasonCurtailmentAbsorption
			d.CurtailmentMitigation = true
			d.Detail = fmt.Sprintf("charging %.1f MW to absorb surplus renewable generation", power)
		} else {
			d.Reason = types.ReasonOpportunisticCharge
			d.Detail = fmt.Sprintf("charging %.1f MW at low price %.2f CAD/MWh", power, sig.PriceCADPerMWH)
		}
		return d
	}

	if sig.PriceCADPerMWH > c.cfg.DischargePriceThresholdCADPerMWH && state.SOCPercent > c.cfg.MinSOCPercent {
		availableMW := (state.SOCPercent - c.cfg.MinSOCPercent) / 100 * state.CapacityMWH / c.cfg.DurationHours
		power := math.Min(state.PowerRatingMW, availableMW)
		return Decision{
			Action:             types.DispatchDischarge,
			PowerMW:            power,
			DurationHours:      c.cfg.DurationHours,
			Reason:             types.ReasonPriceArbitrage,
			Detail:             fmt.Sprintf("discharging %.1f MW at high price %.2f CAD/MWh", power, sig.PriceCADPerMWH),
			ExpectedRevenueCAD: power * c.cfg.DurationHours * sig.PriceCADPerMWH,
		}
	}

	hold.Detail = fmt.Sprintf("no action at price %.2f CAD/MWh and SoC %.1f%%", sig.PriceCADPerMWH, state.SOCPercent)
	return hold
}

// Execute applies a decision to a battery state and returns the new state.
// Hold leaves the state untouched. Charge energy is discounted by the
// round-trip efficiency; discharge removes energy undiminished. The resulting
// SoC is clamped to the hard bounds and the MWh figure recomputed from the
// clamped percentage so the two never disagree.
func (c *Controller) Execute(state types.BatteryState, d Decision) types.BatteryState {
	if d.Action == types.DispatchHold {
		return state
	}
	energy := d.PowerMW * d.DurationHours
	switch d.Action {
	case types.DispatchCharge:
		state.SOCMWH += energy * c.cfg.RoundTripEfficiency
	case types.DispatchDischarge:
		state.SOCMWH -= energy
	}
	state.SOCMWH = math.Min(math.Max(state.SOCMWH, 0), state.CapacityMWH)
	state.SOCPercent = state.SOCMWH / state.CapacityMWH * 100
	if state.SOCPercent < c.cfg.HardMinSOCPercent {
		state.SOCPercent = c.cfg.HardMinSOCPercent
	} else if state.SOCPercent > c.cfg.HardMaxSOCPercent {
		state.SOCPercent = c.cfg.HardMaxSOCPercent
	}
	state.SOCMWH = state.SOCPercent / 100 * state.CapacityMWH
	state.LastUpdated = c.now()
	return state
}

// Dispatch makes and applies one dispatch decision for an area. The battery
// is created with the initial SoC if the area has never dispatched before.
// The decision log is written best-effort: a log write failure is reported in
// the logs but does not fail the dispatch, since the battery state update has
// already committed.
func (c *Controller) Dispatch(ctx context.Context, area string, sig Signal) (Decision, types.BatteryState, types.BatteryState, error) {
	m := c.areaLock(area)
	m.Lock()
	defer m.Unlock()

	before, err := c.State(ctx, area)
	if err != nil {
		return Decision{}, types.BatteryState{}, types.BatteryState{}, err
	}

	d := c.Decide(before, sig)
	after := c.Execute(before, d)
	if d.Action != types.DispatchHold {
		if err := c.db.SetBatteryState(ctx, after); err != nil {
			return Decision{}, types.BatteryState{}, types.BatteryState{}, fmt.Errorf("persisting battery state for %s: %w", area, err)
		}
	}

	entry := types.DispatchLogEntry{
		Area:                  area,
		Action:                d.Action,
		PowerMW:               d.PowerMW,
		DurationHours:         d.DurationHours,
		SOCBeforePercent:      before.SOCPercent,
		SOCAfterPercent:       after.SOCPercent,
		SOCBeforeMWH:          before.SOCMWH,
		SOCAfterMWH:           after.SOCMWH,
		Reason:                d.Reason,
		Detail:                d.Detail,
		ExpectedRevenueCAD:    d.ExpectedRevenueCAD,
		RenewableAbsorption:   d.RenewableAbsorption,
		CurtailmentMitigation: d.CurtailmentMitigation,
		DispatchedAt:          c.now(),
	}
	if err := c.db.InsertDispatchLog(ctx, entry); err != nil {
		log.Ctx(ctx).Warn("failed to write dispatch log",
			"area", area,
			"action", string(d.Action),
			"error", err)
	}
	return d, before, after, nil
}

// State returns the battery state for an area, creating and persisting a new
// battery at the initial SoC if none exists yet.
func (c *Controller) State(ctx context.Context, area string) (types.BatteryState, error) {
	state, err := c.db.GetBatteryState(ctx, area)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, storage.ErrBatteryNotFound) {
		return types.BatteryState{}, fmt.Errorf("loading battery state for %s: %w", area, err)
	}
	p := c.cfg.profile(area)
	state = types.BatteryState{
		Area:          area,
		SOCPercent:    c.cfg.InitialSOCPercent,
		SOCMWH:        c.cfg.InitialSOCPercent / 100 * p.CapacityMWH,
		CapacityMWH:   p.CapacityMWH,
		PowerRatingMW: p.PowerRatingMW,
		LastUpdated:   c.now(),
	}
	if err := c.db.SetBatteryState(ctx, state); err != nil {
		return types.BatteryState{}, fmt.Errorf("initializing battery for %s: %w", area, err)
	}
	return state, nil
}
