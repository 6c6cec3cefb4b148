package cfg

type Cfg struct {
	// Storage configuration
	DBPath      string
	SourcesDir  string
	CardsDir    string
	CapturesDir string
	ExportDir   string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
