package command

import (
	"strconv"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/statestore"
)

var validate = validator.New()

// BuildProfile converts the key/value arguments of a /conn add or
// /conn edit command into a ConnectionProfile, validating it before it
// ever reaches the State Store. The password key is returned
// separately since it is never stored on the struct itself.
func BuildProfile(c *Command, base *statestore.ConnectionProfile) (*statestore.ConnectionProfile, string, error) {
	p := &statestore.ConnectionProfile{Backend: "postgres"}
	if base != nil {
		*p = *base
	}
	p.Name = c.Name

	var password string
	extras := statestore.Extras{}
	for k, v := range c.KeyValues {
		switch k {
		case "host":
			p.Host = v
		case "port":
			port, err := strconv.Atoi(v)
			if err != nil {
				return nil, "", apperrors.ValidationError("port", "port must be numeric")
			}
			p.Port = port
		case "database":
			p.Database = v
		case "user":
			p.User = v
		case "sslmode":
			p.SSLMode = v
		case "password":
			password = v
		default:
			extras[k] = v
		}
	}
	if len(extras) > 0 {
		if p.Extras == nil {
			p.Extras = statestore.Extras{}
		}
		for k, v := range extras {
			p.Extras[k] = v
		}
	}

	if err := validate.Struct(p); err != nil {
		return nil, "", apperrors.ValidationError("connection_profile", err.Error())
	}
	return p, password, nil
}
