package sniff

import (
	"testing"

	"github.com/stretchr/testify/require"

	sspak "github.com/vansante/go-sspak"
)

const testSerialized = `a:7:{s:7:"db_type";s:13:"MySQLDatabase";s:9:"db_server";s:9:"localhost";` +
	`s:11:"db_username";s:4:"root";s:11:"db_password";s:6:"s3;c"t";s:11:"db_database";s:7:"ss_site";` +
	`s:7:"db_port";i:3306;s:11:"assets_path";s:20:"/var/www/site/assets";}`

func TestParse_PHPSerialized(t *testing.T) {
	p, err := Parse([]byte(testSerialized + "\n"))
	require.NoError(t, err)
	require.Equal(t, &Profile{
		DatabaseKind:     "MySQLDatabase",
		DatabaseHost:     "localhost",
		DatabasePort:     "3306",
		DatabaseUser:     "root",
		DatabasePassword: `s3;c"t`,
		DatabaseName:     "ss_site",
		AssetsPath:       "/var/www/site/assets",
		Extra:            map[string]string{},
	}, p)
}

func TestParse_PHPScalarTypes(t *testing.T) {
	out := `a:5:{s:7:"db_type";s:18:"PostgreSQLDatabase";s:11:"assets_path";s:6:"assets";` +
		`s:10:"db_timeout";d:1.5;s:9:"db_memory";b:1;s:6:"db_ssl";N;}`
	p, err := Parse([]byte(out))
	require.NoError(t, err)
	require.Equal(t, "PostgreSQLDatabase", p.DatabaseKind)
	require.Equal(t, map[string]string{"db_timeout": "1.5", "db_memory": "true", "db_ssl": ""}, p.Extra)
}

func TestParse_Noise(t *testing.T) {
	out := "PHP Notice:  Undefined index: foo in /tmp/x.php on line 3\r\n" + testSerialized + "\r\n"
	p, err := Parse([]byte(out))
	require.NoError(t, err)
	require.Equal(t, "ss_site", p.DatabaseName)
}

func TestParse_JSONAndYAML(t *testing.T) {
	json := `{"db_type": "MySQLPDODatabase", "db_server": "db", "db_port": 3307, "assets_path": "/srv/public/assets"}`
	p, err := Parse([]byte(json))
	require.NoError(t, err)
	require.Equal(t, "MySQLPDODatabase", p.DatabaseKind)
	require.Equal(t, "3307", p.DatabasePort)
	require.Equal(t, "/srv/public/assets", p.AssetsPath)

	yml := "db_type: PostgreSQLDatabase\ndb_database: site\nassets_path: /srv/assets\ndb_password: null\n"
	p, err = Parse([]byte(yml))
	require.NoError(t, err)
	require.Equal(t, "site", p.DatabaseName)
	require.Empty(t, p.DatabasePassword)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"whitespace", " \n\t"},
		{"garbage", "Fatal error: Class 'Foo' not found"},
		{"truncated php", `a:2:{s:7:"db_type";s:13:"MySQLDatabase";`},
		{"bad string length", `a:1:{s:99:"db_type";s:1:"x";}`},
		{"overflowing string length", `a:1:{s:9223372036854775807:"x";s:1:"y";}`},
		{"huge array length", `a:9223372036854775807:{s:1:"x";s:1:"y";}`},
		{"integer without colon", `a:1:{s:7:"db_type";i;}`},
		{"nested php", `a:1:{s:7:"db_type";a:0:{}}`},
		{"nested json", `{"db_type": {"a": 1}, "assets_path": "x"}`},
		{"missing kind", `a:1:{s:11:"assets_path";s:1:"x";}`},
		{"missing assets", `{"db_type": "MySQLDatabase"}`},
		{"trailing data", testSerialized + "junk"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.output))
			require.ErrorIs(t, err, sspak.ErrDiscoveryFailed)
		})
	}
}
