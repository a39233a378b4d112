package main

import (
	"ShopNotifier/internal/bootstrap"
	pkg "ShopNotifier/pkg/routes"

	"go.uber.org/fx"
)

func main() {
	bootstrap.Loadenv()

	app := fx.New(
		pkg.NotifierModules,
	)

	app.Run()
}
