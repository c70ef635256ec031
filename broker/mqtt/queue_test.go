package mqtt_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	mq "github.com/sylvia-iot/general-mq"
	"github.com/sylvia-iot/general-mq/broker/mqtt"
)

var _ = Describe("Connection construction", func() {
	It("rejects a non-mqtt scheme", func() {
		_, err := mqtt.NewConnection(mq.ConnOptions{HostURI: "amqp://localhost/"})
		Expect(err).To(HaveOccurred())
	})

	It("constructs connections when the client ID is unset", func() {
		c1, err := mqtt.NewConnection(mq.ConnOptions{HostURI: "mqtt://localhost:1883"})
		Expect(err).NotTo(HaveOccurred())
		c2, err := mqtt.NewConnection(mq.ConnOptions{HostURI: "mqtt://localhost:1883"})
		Expect(err).NotTo(HaveOccurred())
		Expect(c1).NotTo(BeNil())
		Expect(c2).NotTo(BeNil())
	})
})

var _ = Describe("Queue.Topic", func() {
	var conn *mqtt.Connection

	BeforeEach(func() {
		var err error
		conn, err = mqtt.NewConnection(mq.ConnOptions{HostURI: "mqtt://localhost:1883"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("prefixes unicast receivers with SharedPrefix", func() {
		q, err := mqtt.NewQueue(mq.QueueOptions{
			Name:         "name",
			IsRecv:       true,
			Broadcast:    false,
			SharedPrefix: "$share/general-mq/",
		}, conn)
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Topic()).To(Equal("$share/general-mq/name"))
	})

	It("uses the bare name for broadcast receivers", func() {
		q, err := mqtt.NewQueue(mq.QueueOptions{
			Name:         "name",
			IsRecv:       true,
			Broadcast:    true,
			SharedPrefix: "$share/general-mq/",
		}, conn)
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Topic()).To(Equal("name"))
	})

	It("uses the bare name for senders", func() {
		q, err := mqtt.NewQueue(mq.QueueOptions{Name: "name", IsRecv: false}, conn)
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Topic()).To(Equal("name"))
	})

	It("uses the bare name for unicast receivers without a shared prefix", func() {
		q, err := mqtt.NewQueue(mq.QueueOptions{Name: "name", IsRecv: true}, conn)
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Topic()).To(Equal("name"))
	})
})

var _ = Describe("Queue.Connect without a message handler", func() {
	It("fails with ErrNoMsgHandler for receivers", func() {
		conn, err := mqtt.NewConnection(mq.ConnOptions{HostURI: "mqtt://localhost:1883"})
		Expect(err).NotTo(HaveOccurred())

		q, err := mqtt.NewQueue(mq.QueueOptions{Name: "recv-queue", IsRecv: true}, conn)
		Expect(err).NotTo(HaveOccurred())

		err = q.Connect()
		Expect(err).To(MatchError(mq.ErrNoMsgHandler))
	})
})
