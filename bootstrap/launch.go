package bootstrap

import (
	"strconv"

	"github.com/appfoundry/appshell/launchkey"
)

// EnvVar is one environment variable passed to the server process.
type EnvVar struct {
	Name  string
	Value string
}

// LaunchConfig is the ordered set of environment variables the server is
// launched with. It is built once per launch and not modified afterward.
type LaunchConfig struct {
	vars []EnvVar
}

// Set adds or overwrites a variable, preserving insertion order.
func (c *LaunchConfig) Set(name, value string) {
	for i := range c.vars {
		if c.vars[i].Name == name {
			c.vars[i].Value = value
			return
		}
	}
	c.vars = append(c.vars, EnvVar{Name: name, Value: value})
}

// Get returns the value of a variable and whether it is present.
func (c *LaunchConfig) Get(name string) (string, bool) {
	for _, v := range c.vars {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Environ returns the variables in NAME=value form, in insertion order,
// suitable for appending to os.Environ.
func (c *LaunchConfig) Environ() []string {
	env := make([]string, 0, len(c.vars))
	for _, v := range c.vars {
		env = append(env, v.Name+"="+v.Value)
	}
	return env
}

// NewLaunchConfig builds the environment the server is started with. The
// mapping is a static policy: it does not depend on the outcome of prior
// launches.
//
// PUBLIC_URL is deliberately empty so the server emits relative asset URLs
// that work from inside the shell window.
func NewLaunchConfig(port int, key *launchkey.Key) LaunchConfig {
	var cfg LaunchConfig
	cfg.Set("NODE_ENV", "production")
	cfg.Set("PORT", strconv.Itoa(port))
	cfg.Set("PUBLIC_URL", "")
	if key != nil {
		cfg.Set("APPSHELL_LAUNCH_ID", key.LaunchID)
		cfg.Set("APPSHELL_LAUNCH_SECRET", key.SecretHex())
	}
	return cfg
}
