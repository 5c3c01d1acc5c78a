package main

import (
	"log"

	"treasury-reconciler/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatal("error creating an application instance: ", err)
	}

	if err := a.Run(); err != nil {
		log.Fatal(err)
	}
}
