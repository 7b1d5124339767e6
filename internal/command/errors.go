package command

import apperrors "github.com/jordigilh/glance/internal/errors"

var errNotACommand = apperrors.New(apperrors.KindConfig, "parse command").WithDetails("input does not start with /")
var errEmptyCommand = apperrors.New(apperrors.KindConfig, "parse command").WithDetails("empty command")

func errMissingArg(command, arg string) error {
	return apperrors.New(apperrors.KindConfig, "parse command").WithDetailsf("/%s requires a %s argument", command, arg)
}

func unknownCommand(verb string) error {
	return apperrors.New(apperrors.KindConfig, "parse command").WithDetailsf("unknown command /%s", verb)
}
