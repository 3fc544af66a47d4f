package config

const (
	defaultDataDir            = "~/.local/share/paperlink/data"
	defaultLogDir             = "~/.local/share/paperlink/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultKGUserAgent        = "paperlink/dev"
	defaultIdentifierProperty = "P818"
	defaultRepositoryProperty = "P223"
	defaultReferenceProperty  = "P1689"
	defaultKGTimeoutSeconds   = 30
	defaultKGRetryAttempts    = 4
	defaultSourceTimeout      = 300
	defaultMinTitleSimilarity = 0.85
	defaultWorkers            = 4
	defaultLakeFSBranch       = "main"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		KG: KG{
			UserAgent:          defaultKGUserAgent,
			IdentifierProperty: defaultIdentifierProperty,
			RepositoryProperty: defaultRepositoryProperty,
			ReferenceProperty:  defaultReferenceProperty,
			TimeoutSeconds:     defaultKGTimeoutSeconds,
			RetryAttempts:      defaultKGRetryAttempts,
		},
		Matcher: Matcher{
			HeuristicEnabled:   true,
			MinTitleSimilarity: defaultMinTitleSimilarity,
		},
		Persistence: Persistence{
			Backend: "none",
			LakeFS: LakeFSPersistence{
				Branch: defaultLakeFSBranch,
			},
		},
		Pipeline: Pipeline{
			Workers: defaultWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
