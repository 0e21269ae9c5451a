// Package config provides configuration management for stratum.
//
// # Sections
//
// - Engine: worker count, partition grain size and memory limit of a stream
// - Regex: small/large program selection for backreference replacement
// - Logging, Metrics, Tracing: the ambient observability stack
// - IO: Arrow IPC and Parquet reader/writer settings used by the CLI
//
// # Loading
//
//	cfg, err := config.Load("stratum.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Load starts from Default, so a file only needs the values it changes.
//
// # Environment Variable Substitution
//
// Any ${VAR_NAME} in the YAML file is replaced with the environment value
// before parsing:
//
//	engine:
//	  workers: ${STRATUM_WORKERS}
//	  memory_limit_mb: 2048
//
// The stratum CLI additionally binds STRATUM_* variables through viper.
package config
