package main

import (
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/systmms/multisecret/internal/handler"
	"github.com/systmms/multisecret/internal/logging"
)

func main() {
	logger := logging.New(os.Getenv("MULTISECRET_DEBUG") != "", true)
	h := handler.New(handler.WithLogger(logger))
	lambda.Start(cfn.LambdaWrap(h.Handle))
}
