package providers

import (
	"fmt"
	"os"

	"github.com/flowctl/flowctl/internal/mcprouter"
)

// Select resolves the provider by name per §6/§9: "openai" and "github"
// require their secret to be present; an empty name or "dummy" gives Dummy,
// and so does any other name outside production. In production
// (ENV=production) a missing secret for an explicitly named provider, or an
// unrecognized name, is a construction failure rather than a silent fallback.
func Select(name string) (mcprouter.Provider, error) {
	production := os.Getenv("ENV") == "production"

	switch name {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			if production {
				return nil, fmt.Errorf("provider %q requires OPENAI_API_KEY in production", name)
			}
			return Dummy{}, nil
		}
		return NewOpenAI(key, 0), nil

	case "github":
		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			if production {
				return nil, fmt.Errorf("provider %q requires GITHUB_TOKEN in production", name)
			}
			return Dummy{}, nil
		}
		return NewGitHub(token, 0), nil

	case "", "dummy":
		return Dummy{}, nil

	default:
		if production {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		return Dummy{}, nil
	}
}
