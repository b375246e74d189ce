package utils

import (
	"flag"
	"strings"

	"github.com/micromdm/go4/env"
)

func ServerURL() string {
	return strings.TrimRight(flag.Lookup("url").Value.(flag.Getter).Get().(string), "/")
}

func CatalogURL() string {
	return strings.TrimRight(flag.Lookup("catalogurl").Value.(flag.Getter).Get().(string), "/")
}

func DebugMode() bool {
	return flag.Lookup("debug").Value.(flag.Getter).Get().(bool)
}

func LogLevel() string {
	f := flag.Lookup("loglevel")
	if f == nil {
		return "warn"
	}
	return strings.ToLower(f.Value.(flag.Getter).Get().(string))
}

func Sign() bool {
	return flag.Lookup("sign").Value.(flag.Getter).Get().(bool)
}

func KeyPath() string {
	return flag.Lookup("private-key").Value.(flag.Getter).Get().(string)
}

func CertPath() string {
	return flag.Lookup("cert").Value.(flag.Getter).Get().(string)
}

func KeyPassword() string {
	return flag.Lookup("password").Value.(flag.Getter).Get().(string)
}

func EnrollmentProfile() string {
	return flag.Lookup("enrollment-profile").Value.(flag.Getter).Get().(string)
}

func GetBasicAuthUser() string {
	return env.String("UDIDDIRECTOR_USERNAME", "udiddirector")
}

func GetBasicAuthPassword() string {
	return env.String("UDIDDIRECTOR_PASSWORD", "")
}
