// Command classify sends one image to the configured classifier and prints
// the raw result. It is a manual check for the classification service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/garnizeh/flyaway/internal/config"
	"github.com/garnizeh/flyaway/pkg/classifier"
	"github.com/garnizeh/flyaway/pkg/models"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	kingdom := flag.String("kingdom", "animal", "Kingdom of the photographed species")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: classify [-config file] [-kingdom plant|animal|mushroom] <image>")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Classifier.Timeout <= 0 {
		cfg.Classifier.Timeout = 30 * time.Second
	}

	k, err := models.ParseKingdom(*kingdom)
	if err != nil {
		log.Fatal(err)
	}

	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	client, err := classifier.NewDefaultClient(cfg.Classifier)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Classifier.Timeout)
	defer cancel()

	img := models.Upload{Filename: filepath.Base(path), ContentType: http.DetectContentType(data), Data: data}
	res, err := client.Classify(ctx, img, k)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%+v\n", *res)
}
