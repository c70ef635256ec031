package amqp_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestAMQP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "amqp broker driver suite")
}
