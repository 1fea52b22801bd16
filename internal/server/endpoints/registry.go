package endpoints

import (
	"github.com/jackzampolin/cuentos/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Idea endpoints
		&SuggestIdeaEndpoint{},

		// Story endpoints
		&CreateStoryEndpoint{},
		&GetStoryEndpoint{},
		&DeleteStoryEndpoint{},
		&ExportStoryEndpoint{},

		// Metrics endpoints
		&MetricsEndpoint{},
	}
}
