package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "cartctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	variantFlag := &cli.StringFlag{Name: "variant", Aliases: []string{"v"}, Usage: "variant id, empty for none"}

	return &cli.App{
		Name:  "cartctl",
		Usage: "inspect and change the storefront cart",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load", Value: cli.NewStringSlice(".env")},
			&cli.BoolFlag{Name: "json", Usage: "print the cart as JSON"},
		},
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "load and print the cart",
				Action: withRuntime(showCart),
			},
			{
				Name:      "add",
				Usage:     "add units of a product",
				ArgsUsage: "[flags] <product-id>",
				Flags: []cli.Flag{
					variantFlag,
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "image"},
					&cli.StringFlag{Name: "price", Value: "0"},
					&cli.IntFlag{Name: "qty", Value: 1},
				},
				Action: withRuntime(addLine),
			},
			{
				Name:      "inc",
				Usage:     "add one unit",
				ArgsUsage: "[flags] <product-id>",
				Flags:     []cli.Flag{variantFlag},
				Action:    withRuntime(incLine),
			},
			{
				Name:      "dec",
				Usage:     "remove one unit, keeping at least one",
				ArgsUsage: "[flags] <product-id>",
				Flags:     []cli.Flag{variantFlag},
				Action:    withRuntime(decLine),
			},
			{
				Name:      "remove",
				Usage:     "delete a line",
				ArgsUsage: "[flags] <product-id>",
				Flags: []cli.Flag{
					variantFlag,
					&cli.StringFlag{Name: "cartid", Usage: "server line id, looked up when empty"},
				},
				Action: withRuntime(removeLine),
			},
			{
				Name:  "login",
				Usage: "store a session and merge the guest cart into the account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true},
					&cli.StringFlag{Name: "token", Required: true, EnvVars: []string{"STOREFRONT_TOKEN"}},
				},
				Action: withRuntime(login),
			},
			{
				Name:   "logout",
				Usage:  "forget the session and return to the guest cart",
				Action: withRuntime(logout),
			},
			{
				Name:   "clear",
				Usage:  "empty the cart on this device",
				Action: withRuntime(clearCart),
			},
		},
	}
}
