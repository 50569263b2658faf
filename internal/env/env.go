package env

import (
	"github.com/brewsignal/brewsignal/internal/config"
)

var Cfg *config.Config
