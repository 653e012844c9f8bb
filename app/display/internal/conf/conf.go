package conf

type Bootstrap struct {
	Server   *Server
	Data     *Data
	Forensic *Forensic
}

type Server struct {
	Http *HTTP
	// MaxUploadMb 上传图片大小上限
	MaxUploadMb int32 `json:"max_upload_mb"`
}

type HTTP struct {
	Addr    string
	Timeout string
}

// Data 报告归档，Source 为空时不启用
type Data struct {
	Database *Database
}

type Database struct {
	Driver string
	Source string
}

type Forensic struct {
	Llm         *LLM         `json:"llm"`
	Imagery     *Imagery     `json:"imagery"`
	Pipeline    *Pipeline    `json:"pipeline"`
	Log         *Log         `json:"log"`
	Concurrency *Concurrency `json:"concurrency"`
}

type LLM struct {
	Provider                 string `json:"provider"`
	BaseUrl                  string `json:"base_url"`
	ApiKey                   string `json:"api_key"`
	Model                    string `json:"model"`
	ReasoningModel           string `json:"reasoning_model"`
	ThinkingBudget           int32  `json:"thinking_budget"`
	GroundedStructuredOutput bool   `json:"grounded_structured_output"`
	Timeout                  int32  `json:"timeout"`
}

type Imagery struct {
	ProxyUrl     string `json:"proxy_url"`
	Limit        int32  `json:"limit"`
	LookbackDays int32  `json:"lookback_days"`
	Timeout      int32  `json:"timeout"`
}

type Pipeline struct {
	EnrichSources bool  `json:"enrich_sources"`
	MaxEnrich     int32 `json:"max_enrich"`
	EnrichTimeout int32 `json:"enrich_timeout"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type Concurrency struct {
	Qps int32 `json:"qps"`
	Rpm int32 `json:"rpm"`
}
