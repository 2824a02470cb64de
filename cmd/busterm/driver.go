package main

import "github.com/wricardo/mcp-training/crossroadbus/game/engine"

// driver is the game the terminal plays: a local engine or a server session.
type driver interface {
	Start()
	Turn(dir engine.TurnDirection)
	Reset()
	// Frame advances local play by dt seconds. Remote sessions advance on
	// the server.
	Frame(dt float64)
	// State returns the latest state, nil until one is known.
	State() *engine.GameState
	Close() error
}

// localDriver runs an engine in process. The engine presses its own input
// latch on Turn and is polled on the next Frame.
type localDriver struct {
	eng *engine.GameEngine
}

func newLocalDriver(config *engine.LevelConfig, opts ...engine.EngineOption) (*localDriver, error) {
	eng, err := engine.NewEngine(config, opts...)
	if err != nil {
		return nil, err
	}
	return &localDriver{eng: eng}, nil
}

func (d *localDriver) Start() { d.eng.Start() }
func (d *localDriver) Turn(dir engine.TurnDirection) { d.eng.Turn(dir) }
func (d *localDriver) Reset() { d.eng.Reset() }
func (d *localDriver) Frame(dt float64) { d.eng.Tick(dt) }
func (d *localDriver) State() *engine.GameState { return d.eng.GetState() }
func (d *localDriver) Close() error { return nil }
