package command

import (
	"github.com/pixil98/go-errors"
)

type Config struct {
	Storage     StorageConfig     `json:"storage"`
	Nats        NatsConfig        `json:"nats"`
	Persistence PersistenceConfig `json:"persistence"`
	Scheduler   SchedulerConfig   `json:"scheduler"`
	Actions     ActionsConfig     `json:"actions"`
	Narrative   NarrativeConfig   `json:"narrative"`

	// Seed fixes the random source for reproducible worlds. Zero
	// seeds from the clock.
	Seed uint64 `json:"seed,omitempty"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Persistence.validate())
	el.Add(c.Scheduler.validate())
	el.Add(c.Actions.validate())

	return el.Err()
}
