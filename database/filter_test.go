package database

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func gunzipped(t *testing.T, r io.Reader) string {
	t.Helper()
	gzr, err := gzip.NewReader(r)
	require.NoError(t, err)
	data, err := io.ReadAll(gzr)
	require.NoError(t, err)
	return string(data)
}

func TestFilterDump(t *testing.T) {
	dump := strings.Join([]string{
		"-- MySQL dump 10.13",
		"CREATE DATABASE /*!32312 IF NOT EXISTS*/ `prod` /*!40100 DEFAULT CHARACTER SET utf8 */;",
		"",
		"USE `prod`;",
		"  create database other;",
		"use other;",
		"DROP TABLE IF EXISTS `SiteTree`;",
		"CREATE TABLE `SiteTree` (`ID` int);",
		"INSERT INTO `SiteTree` VALUES (1),(2);",
		"-- USE inside a comment is kept",
		"INSERT INTO `Notes` VALUES ('USE this');",
		"",
	}, "\n")

	r := MySQL{}.FilterDump(bytes.NewReader(gzipped(t, dump)))
	defer r.Close()

	require.Equal(t, strings.Join([]string{
		"-- MySQL dump 10.13",
		"",
		"DROP TABLE IF EXISTS `SiteTree`;",
		"CREATE TABLE `SiteTree` (`ID` int);",
		"INSERT INTO `SiteTree` VALUES (1),(2);",
		"-- USE inside a comment is kept",
		"INSERT INTO `Notes` VALUES ('USE this');",
		"",
	}, "\n"), gunzipped(t, r))
}

func TestFilterDump_LongLines(t *testing.T) {
	long := "INSERT INTO `File` VALUES " + strings.Repeat("('USE x'),", 50000) + "(0);"
	dump := "USE `prod`;\n" + long + "\n" + "CREATE DATABASE x;" + strings.Repeat(" ", 3*filterBufferSize) + "\nSELECT 1;"

	r := MySQL{}.FilterDump(bytes.NewReader(gzipped(t, dump)))
	defer r.Close()
	require.Equal(t, long+"\nSELECT 1;", gunzipped(t, r))
}

func TestFilterDump_NotCompressed(t *testing.T) {
	r := MySQL{}.FilterDump(strings.NewReader("CREATE TABLE x;"))
	defer r.Close()
	_, err := io.ReadAll(r)
	require.Error(t, err)
}

func TestPostgreSQL_FilterDump(t *testing.T) {
	dump := strings.Join([]string{
		"-- PostgreSQL database dump",
		"CREATE DATABASE prod WITH TEMPLATE = template0;",
		`\connect prod`,
		`\c prod`,
		"SET client_encoding = 'UTF8';",
		"COPY public.notes (body, id) FROM stdin;",
		"use\t2",
		"create database night\t3",
		`\connect\t4`,
		`\.`,
		"CREATE DATABASE after;",
		"use is no statement here",
		"SELECT pg_catalog.setval('public.notes_id_seq', 4, true);",
		"",
	}, "\n")

	r := PostgreSQL{}.FilterDump(bytes.NewReader(gzipped(t, dump)))
	defer r.Close()

	require.Equal(t, strings.Join([]string{
		"-- PostgreSQL database dump",
		"SET client_encoding = 'UTF8';",
		"COPY public.notes (body, id) FROM stdin;",
		"use\t2",
		"create database night\t3",
		`\connect\t4`,
		`\.`,
		"use is no statement here",
		"SELECT pg_catalog.setval('public.notes_id_seq', 4, true);",
		"",
	}, "\n"), gunzipped(t, r))
}

func TestMySQL_FilterDump_KeepsCopyLikeLines(t *testing.T) {
	dump := "COPY x FROM stdin;\nUSE `prod`;\n\\.\nSELECT 1;\n"

	r := MySQL{}.FilterDump(bytes.NewReader(gzipped(t, dump)))
	defer r.Close()
	require.Equal(t, "COPY x FROM stdin;\n\\.\nSELECT 1;\n", gunzipped(t, r))
}
