// Command stubserver runs the in-memory backend stand-in for local
// development of the client.
package main

import (
	"flag"
	"log"

	"clinicsync/stubserver"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	flag.Parse()

	server := stubserver.New()
	server.AddEmployee(stubserver.Employee{ID: 1, Username: "reception", FirstName: "Asha", LastName: "Verma", Role: "receptionist", BranchID: 1})
	server.AddEmployee(stubserver.Employee{ID: 2, Username: "drrahul", FirstName: "Rahul", LastName: "Singh", Role: "doctor", BranchID: 1})
	server.AddEmployee(stubserver.Employee{ID: 3, Username: "admin", FirstName: "Priya", LastName: "Nair", Role: "admin", BranchID: 1})

	log.Printf("stub backend listening on %s", *addr)
	if err := server.Handler().Run(*addr); err != nil {
		log.Fatalf("stub backend exited: %v", err)
	}
}
