package main

import (
	"os"

	"github.com/emberengine/ember/engine"
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/testbed"
)

func main() {
	cfg, err := core.LoadConfig("ember.toml")
	if err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(testbed.NewTestGame(), cfg)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Run(); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}
