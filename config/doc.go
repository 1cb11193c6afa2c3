// Package config resolves enrollment settings from defaults, a YAML file
// and FROST_ environment variables using viper.
//
//	v := viper.New()
//	config.SetDefaults(v)
//	v.SetConfigFile("fyenroll.yaml")
//	_ = v.ReadInConfig()
//	cfg, err := config.Load(v)
package config
