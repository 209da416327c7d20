package job

import (
	"time"

	sspak "github.com/vansante/go-sspak"
)

const (
	defaultPakNameTemplate = "%SITE%_%UNIXTIME%.sspak"
	defaultPushRoutines    = 2
	defaultMaximumPushTime = 12 * time.Hour
)

// Config configures the runner
type Config struct {
	// Directory holds a subdirectory with paks for every site
	Directory       string `mapstructure:"directory" validate:"required"`
	PakNameTemplate string `mapstructure:"pak_name_template" validate:"required"`
	Sites           []Site `mapstructure:"sites" validate:"dive"`

	EnablePakSave  bool `mapstructure:"enable_save"`
	EnablePakPush  bool `mapstructure:"enable_push"`
	EnablePakMark  bool `mapstructure:"enable_mark"`
	EnablePakPrune bool `mapstructure:"enable_prune"`

	// PushPrefix is the s3://bucket/prefix paks are pushed under, followed by the site name
	PushPrefix      string        `mapstructure:"push_prefix" validate:"required_if=EnablePakPush true"`
	PushRoutines    int           `mapstructure:"push_routines" validate:"min=1"`
	MaximumPushTime time.Duration `mapstructure:"maximum_push_time"`
}

// ApplyDefaults applies all the default values to the configuration
func (c *Config) ApplyDefaults() {
	c.PakNameTemplate = defaultPakNameTemplate
	c.PushRoutines = defaultPushRoutines
	c.MaximumPushTime = defaultMaximumPushTime

	c.EnablePakSave = true
	c.EnablePakPush = false
	c.EnablePakMark = true
	c.EnablePakPrune = true
}

// Site is a site that is saved periodically
type Site struct {
	Name     string `mapstructure:"name" validate:"required,excludesall=/\\ "`
	Location string `mapstructure:"location" validate:"required"`
	Sudo     string `mapstructure:"sudo"`

	DB        bool `mapstructure:"db"`
	Assets    bool `mapstructure:"assets"`
	GitRemote bool `mapstructure:"git_remote"`

	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	// Zero or less disables the retention rule
	RetentionCount int           `mapstructure:"retention_count"`
	RetentionAge   time.Duration `mapstructure:"retention_age"`
}

func (s Site) parts() sspak.Parts {
	return sspak.Parts{DB: s.DB, Assets: s.Assets, GitRemote: s.GitRemote}
}
