package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goodbye-jack/go-tenancy/orm"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// readSQLFiles 目录下的 *.sql 按文件名排序，每个文件作为一条语句执行
func readSQLFiles(dir string) ([]string, []string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	sort.Strings(files)
	stmts := make([]string, 0, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read %s", f)
		}
		stmt := strings.TrimSpace(string(raw))
		if stmt == "" {
			continue
		}
		stmts = append(stmts, stmt)
		names = append(names, filepath.Base(f))
	}
	return stmts, names, nil
}

func newMigrateCmd(open opener) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to every tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			stmts, names, err := readSQLFiles(dir)
			if err != nil {
				return err
			}
			if len(stmts) == 0 {
				return errors.Errorf("no .sql files in %s", dir)
			}
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.router.MigrateAll(ctx, a.dir, orm.SQLStatements(stmts...))
			out := cmd.OutOrStdout()
			for _, res := range report {
				status := "ok"
				if res.Err != nil {
					status = "failed: " + res.Err.Error()
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", res.TenantID, res.Elapsed.Round(time.Millisecond), status)
			}
			fmt.Fprintf(out, "applied %s\n", strings.Join(names, ", "))
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory of .sql files")
	return cmd
}
