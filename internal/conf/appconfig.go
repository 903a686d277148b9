package conf

var setVersion string = "0.1.0"

// AppConfiguration is the set of global application configuration constants.
type AppConfiguration struct {
	// Name is the name of the software.
	Name string
	// Version is the version number of the software.
	Version string
	// EnvPrefix is the prefix environment variables are read under.
	EnvPrefix string
}

// AppConfig holds the constants identifying this build of turtlebench.
var AppConfig = AppConfiguration{
	Name:      "turtlebench",
	Version:   setVersion,
	EnvPrefix: "TURTLE",
}
