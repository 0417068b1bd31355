package main

import (
	"github.com/ekaya-inc/ekaya-guard/cmd"

	// Register the compiled-in database adapters.
	_ "github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource/postgres"
)

func main() {
	cmd.Execute()
}
